package upload

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/tokpost/internal/browser"
	"github.com/ibeckermayer/tokpost/internal/browser/browsertest"
	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/types"
)

// pickerPage shows February with the calendar's next arrow moving to March.
func pickerPage(cfg *config.Config, dateText, timeText string) *browsertest.Page {
	sel := cfg.Selectors.Schedule
	p := browsertest.New()
	p.SetTimezone(time.FixedZone("UTC+2", 2*60*60))

	p.Set(sel.Switch[0], browsertest.Visible(""))
	p.Set(sel.DatePicker[0], browsertest.Visible(""))
	p.Set(sel.Calendar[0], browsertest.Visible(""))
	p.Set(sel.CalendarMonth[0], browsertest.Visible("February 2025"))
	p.Set(sel.CalendarPrev[0], browsertest.Visible(""))
	p.Set(sel.CalendarNext[0], browsertest.Visible(""))
	p.Set(sel.CalendarValidDays[0], browsertest.Visible("13"), browsertest.Visible("14"))
	p.Set(sel.DateText[0], browsertest.Visible(dateText))
	p.Set(sel.TimePicker[0], browsertest.Visible(""))
	p.Set(sel.TimePickerContainer[0], browsertest.Visible(""))
	p.Set(sel.TimeText[0], browsertest.Visible(timeText))

	var hours, minutes []browser.ElementState
	for h := range 24 {
		hours = append(hours, browsertest.Visible(fmt.Sprintf("%02d", h)))
	}
	for m := 0; m < 60; m += 5 {
		minutes = append(minutes, browsertest.Visible(fmt.Sprintf("%02d", m)))
	}
	p.Set(sel.HourOptions[0], hours...)
	p.Set(sel.MinuteOptions[0], minutes...)

	p.OnClick = func(p *browsertest.Page, _ string, el browser.Element) error {
		if el.Selector == sel.CalendarNext[0] {
			p.Set(sel.CalendarMonth[0], browsertest.Visible("March 2025"))
		}
		return nil
	}
	return p
}

type click struct {
	selector string
	index    int
}

func clicks(p *browsertest.Page) []click {
	var out []click
	for _, a := range p.Clicks() {
		out = append(out, click{a.Selector, a.Index})
	}
	return out
}

func TestSetSchedule(t *testing.T) {
	cfg := testConfig()
	sel := cfg.Selectors.Schedule
	at := time.Date(2025, time.March, 14, 10, 45, 0, 0, time.UTC)
	p := pickerPage(cfg, "2025-03-14", "12:45")

	f := newForm(cfg, p, types.VideoTask{Schedule: &at})
	require.NoError(t, f.setSchedule(context.Background()))

	// 10:45 UTC is 12:45 in the browser's zone
	assert.Equal(t, []click{
		{sel.Switch[0], 0},
		{sel.DatePicker[0], 0},
		{sel.CalendarNext[0], 0},
		{sel.CalendarValidDays[0], 1},
		{sel.TimePicker[0], 0},
		{sel.HourOptions[0], 12},
		{sel.MinuteOptions[0], 9},
		{sel.TimePicker[0], 0},
	}, clicks(p))
}

func TestSetScheduleLeavesSwitchOn(t *testing.T) {
	cfg := testConfig()
	sel := cfg.Selectors.Schedule
	at := time.Date(2025, time.March, 14, 10, 45, 0, 0, time.UTC)
	p := pickerPage(cfg, "2025-03-14", "12:45")
	p.Update(sel.Switch[0], 0, func(s *browser.ElementState) { s.Checked = true })

	require.NoError(t, newForm(cfg, p, types.VideoTask{Schedule: &at}).setSchedule(context.Background()))
	for _, c := range clicks(p) {
		assert.NotEqual(t, sel.Switch[0], c.selector)
	}
}

func TestSetScheduleMismatch(t *testing.T) {
	cfg := testConfig()
	at := time.Date(2025, time.March, 14, 10, 45, 0, 0, time.UTC)

	tests := []struct {
		name     string
		dateText string
		timeText string
	}{
		{"wrong day", "2025-03-13", "12:45"},
		{"wrong minute", "2025-03-14", "12:40"},
		{"unreadable time", "2025-03-14", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pickerPage(cfg, tt.dateText, tt.timeText)
			err := newForm(cfg, p, types.VideoTask{Schedule: &at}).setSchedule(context.Background())
			assert.ErrorIs(t, err, types.ErrSchedulingMismatch)
		})
	}
}

func TestSetScheduleMissingDay(t *testing.T) {
	cfg := testConfig()
	at := time.Date(2025, time.March, 20, 10, 45, 0, 0, time.UTC)
	p := pickerPage(cfg, "2025-03-20", "12:45")

	err := newForm(cfg, p, types.VideoTask{Schedule: &at}).setSchedule(context.Background())
	assert.ErrorIs(t, err, types.ErrSchedulingMismatch)
	for _, c := range clicks(p) {
		assert.NotEqual(t, cfg.Selectors.Schedule.TimePicker[0], c.selector)
	}
}
