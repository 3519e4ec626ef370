package upload

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/tokpost/internal/browser"
	"github.com/ibeckermayer/tokpost/internal/browser/browsertest"
	"github.com/ibeckermayer/tokpost/internal/types"
)

func typed(p *browsertest.Page) []string {
	var keys []string
	for _, a := range p.ActionsOf(browsertest.ActType) {
		keys = append(keys, a.Value)
	}
	return keys
}

func captionPage(t *testing.T) *browsertest.Page {
	t.Helper()
	cfg := testConfig()
	p := browsertest.New()
	p.Set(cfg.Selectors.Upload.Caption[0], browsertest.Visible(""))
	return p
}

func TestSetCaptionTokens(t *testing.T) {
	cfg := testConfig()
	sel := cfg.Selectors.Upload
	p := captionPage(t)
	p.Set(sel.MentionBox[0], browsertest.Visible(""))
	p.Set(sel.MentionUserID[0], browsertest.Visible("bob Bob"), browsertest.Visible("alice Alice A."))

	f := newForm(cfg, p, types.VideoTask{Caption: "check this #fyp @alice"})
	require.NoError(t, f.setCaption(context.Background()))

	assert.Equal(t, []string{
		"check ",
		"this ",
		"#fyp", " " + kb.Backspace, kb.Enter,
		"@alice ", kb.Backspace, kb.ArrowDown + kb.Enter,
	}, typed(p))
}

func TestSetCaptionMentionCountsHiddenRows(t *testing.T) {
	cfg := testConfig()
	p := captionPage(t)
	p.Set(cfg.Selectors.Upload.MentionUserID[0],
		browsertest.Visible("bob Bob"),
		browser.ElementState{Enabled: true, Text: "alice Stale"},
		browsertest.Visible("alice Alice A."))

	f := newForm(cfg, p, types.VideoTask{Caption: "@alice"})
	require.NoError(t, f.setCaption(context.Background()))

	assert.Equal(t, []string{
		"@alice ", kb.Backspace, kb.ArrowDown + kb.ArrowDown + kb.Enter,
	}, typed(p))
}

func TestSetCaptionWithoutSuggestions(t *testing.T) {
	cfg := testConfig()
	p := captionPage(t)
	p.Set(cfg.Selectors.Upload.MentionUserID[0], browsertest.Visible("bob"))

	f := newForm(cfg, p, types.VideoTask{Caption: "#fyp @alice"})
	require.NoError(t, f.setCaption(context.Background()))

	assert.Equal(t, []string{
		"#fyp", " " + kb.Backspace, " ",
		"@alice ", kb.Backspace, " ",
	}, typed(p))
}

func TestSetCaptionTruncates(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxCaptionLength = 5
	p := captionPage(t)

	f := newForm(cfg, p, types.VideoTask{Caption: "  abcdefgh\x00  "})
	require.NoError(t, f.setCaption(context.Background()))
	assert.Equal(t, "abcde ", p.Typed())
}

func TestSetCaptionClearsPrefilledText(t *testing.T) {
	cfg := testConfig()
	p := captionPage(t)
	p.Set(cfg.Selectors.Upload.Caption[0], browsertest.Visible("clip.mp4\nsecond line"))

	f := newForm(cfg, p, types.VideoTask{Caption: "hi"})
	require.NoError(t, f.setCaption(context.Background()))

	// The whole field is selected, so one deletion clears every line
	sel := p.ActionsOf(browsertest.ActSelectAll)
	require.Len(t, sel, 1)
	assert.Equal(t, cfg.Selectors.Upload.Caption[0], sel[0].Selector)
	assert.Equal(t, []string{kb.Backspace, "hi "}, typed(p))
}

func TestSetCaptionFallsBackToPlainText(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxCaptionLength = 10
	p := captionPage(t)

	var failed atomic.Bool
	p.OnType = func(_ *browsertest.Page, keys string) error {
		if keys == "#fyp" && failed.CompareAndSwap(false, true) {
			return errors.New("editor detached")
		}
		return nil
	}

	f := newForm(cfg, p, types.VideoTask{Caption: "hello #fyp and more words"})
	require.NoError(t, f.setCaption(context.Background()))

	keys := typed(p)
	require.NotEmpty(t, keys)
	// The retry types the whole cleaned caption, not the truncated one
	assert.Equal(t, "hello #fyp and more words", keys[len(keys)-1])
}
