package upload

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/resolver"
	"github.com/ibeckermayer/tokpost/internal/schedule"
	"github.com/ibeckermayer/tokpost/internal/types"
)

// setSchedule switches the post to scheduled and fills both pickers in the
// browser's own time zone. Each picker is read back afterwards and any
// difference fails with ErrSchedulingMismatch.
func (f *form) setSchedule(ctx context.Context) error {
	sel := f.c.selectors.Schedule

	loc, err := f.page.Timezone(ctx)
	if err != nil {
		return fmt.Errorf("reading browser timezone: %w", err)
	}
	at := f.task.Schedule.In(loc)
	f.logger.Info("Scheduling post",
		zap.Time("at", at),
		zap.String("timezone", loc.String()))

	sw, err := f.r.Find(ctx, sel.Switch, resolver.Options{Timeout: f.c.timeouts.Implicit, AllowHidden: true})
	if err != nil {
		return fmt.Errorf("%w: schedule switch: %w", types.ErrInteractionFailed, err)
	}
	if !sw.State.Checked {
		if err := f.r.Click(ctx, sw); err != nil {
			return err
		}
	}

	if err := f.pickDate(ctx, at.Month(), at.Day()); err != nil {
		return err
	}
	return f.pickTime(ctx, at.Hour(), at.Minute())
}

func (f *form) pickDate(ctx context.Context, month time.Month, day int) error {
	sel := f.c.selectors.Schedule
	wait := f.c.timeouts.Implicit

	if _, err := f.r.FindAndClick(ctx, sel.DatePicker, wait); err != nil {
		return fmt.Errorf("date picker: %w", err)
	}
	if _, err := f.r.Find(ctx, sel.Calendar, resolver.Options{Timeout: wait}); err != nil {
		return fmt.Errorf("%w: calendar did not open: %w", types.ErrInteractionFailed, err)
	}

	shown, err := f.calendarMonth(ctx)
	if err != nil {
		return err
	}
	steps := schedule.MonthSteps(shown, month)
	arrow := sel.CalendarNext
	if steps < 0 {
		arrow, steps = sel.CalendarPrev, -steps
	}
	for range steps {
		if _, err := f.r.FindAndClick(ctx, arrow, wait); err != nil {
			return fmt.Errorf("calendar arrow: %w", err)
		}
	}
	if shown, err = f.calendarMonth(ctx); err != nil {
		return err
	}
	if shown != month {
		return fmt.Errorf("%w: calendar shows %s, want %s", types.ErrSchedulingMismatch, shown, month)
	}

	days, err := f.r.FindAll(ctx, sel.CalendarValidDays, resolver.Options{Timeout: wait})
	if err != nil {
		return fmt.Errorf("%w: no selectable days: %w", types.ErrSchedulingMismatch, err)
	}
	want := strconv.Itoa(day)
	picked := false
	for _, d := range days {
		if strings.TrimSpace(d.State.Text) == want {
			if err := f.r.Click(ctx, d); err != nil {
				return err
			}
			picked = true
			break
		}
	}
	if !picked {
		return fmt.Errorf("%w: day %d is not selectable", types.ErrSchedulingMismatch, day)
	}

	text, err := f.readText(ctx, sel.DateText)
	if err != nil {
		return err
	}
	gotMonth, gotDay, err := schedule.ParsePickedDate(text)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrSchedulingMismatch, err)
	}
	if gotMonth != month || gotDay != day {
		return fmt.Errorf("%w: date picker shows %s, want %02d-%02d",
			types.ErrSchedulingMismatch, text, int(month), day)
	}
	f.logger.Debug("Date picked", zap.String("date", text))
	return nil
}

func (f *form) calendarMonth(ctx context.Context) (time.Month, error) {
	title, err := f.readText(ctx, f.c.selectors.Schedule.CalendarMonth)
	if err != nil {
		return 0, err
	}
	m, err := schedule.ParseMonth(title)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrSchedulingMismatch, err)
	}
	return m, nil
}

func (f *form) pickTime(ctx context.Context, hour, minute int) error {
	sel := f.c.selectors.Schedule
	wait := f.c.timeouts.Implicit

	if _, err := f.r.FindAndClick(ctx, sel.TimePicker, wait); err != nil {
		return fmt.Errorf("time picker: %w", err)
	}
	if _, err := f.r.Find(ctx, sel.TimePickerContainer, resolver.Options{Timeout: wait}); err != nil {
		return fmt.Errorf("%w: time picker did not open: %w", types.ErrInteractionFailed, err)
	}

	if err := f.pickOption(ctx, "hour", sel.HourOptions, hour); err != nil {
		return err
	}
	if err := f.pickOption(ctx, "minute", sel.MinuteOptions, schedule.MinuteOptionIndex(minute)); err != nil {
		return err
	}

	// Clicking the picker again closes it and commits the value
	if _, err := f.r.FindAndClick(ctx, sel.TimePicker, wait); err != nil {
		return fmt.Errorf("time picker: %w", err)
	}
	if err := resolver.Sleep(ctx, f.c.timeouts.Settle); err != nil {
		return err
	}

	text, err := f.readText(ctx, sel.TimeText)
	if err != nil {
		return err
	}
	gotHour, gotMinute, err := schedule.ParsePickedTime(text)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrSchedulingMismatch, err)
	}
	if gotHour != hour || gotMinute != minute {
		return fmt.Errorf("%w: time picker shows %s, want %02d:%02d",
			types.ErrSchedulingMismatch, text, hour, minute)
	}
	f.logger.Debug("Time picked", zap.String("time", text))
	return nil
}

// pickOption clicks the index-th option of a picker column.
func (f *form) pickOption(ctx context.Context, name string, candidates config.Candidates, index int) error {
	options, err := f.r.FindAll(ctx, candidates, resolver.Options{Timeout: f.c.timeouts.Implicit, AllowHidden: true})
	if err != nil {
		return fmt.Errorf("%w: %s options: %w", types.ErrSchedulingMismatch, name, err)
	}
	if index >= len(options) {
		return fmt.Errorf("%w: %s option %d of %d", types.ErrSchedulingMismatch, name, index, len(options))
	}
	opt := options[index]
	if err := f.page.ScrollIntoView(ctx, opt); err != nil {
		f.logger.Debug("Could not scroll to option", zap.String("picker", name), zap.Error(err))
	}
	return f.r.Click(ctx, opt)
}

// readText returns the trimmed text of the first visible match.
func (f *form) readText(ctx context.Context, candidates config.Candidates) (string, error) {
	el, err := f.r.Find(ctx, candidates, resolver.Options{Timeout: f.c.timeouts.Implicit})
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrSchedulingMismatch, err)
	}
	return strings.TrimSpace(el.State.Text), nil
}
