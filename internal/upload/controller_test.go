package upload

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/browser"
	"github.com/ibeckermayer/tokpost/internal/browser/browsertest"
	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/resolver"
	"github.com/ibeckermayer/tokpost/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() *config.Config {
	cfg := config.Default()
	t := &cfg.Timeouts
	t.Implicit = 30 * time.Millisecond
	t.Explicit = 100 * time.Millisecond
	t.UploadProcessing = 200 * time.Millisecond
	t.ProcessingStart = 10 * time.Millisecond
	t.PostEnabled = 10 * time.Millisecond
	t.PostConfirmation = 30 * time.Millisecond
	t.SuccessIndicator = 10 * time.Millisecond
	t.PollInterval = 2 * time.Millisecond
	t.MentionLookup = 30 * time.Millisecond
	t.HashtagWait = time.Millisecond
	t.Settle = time.Millisecond
	cfg.Upload.Retries = 0
	return cfg
}

// processed makes the page look like the server finished transcoding.
func processed(p *browsertest.Page, cfg *config.Config) {
	sel := cfg.Selectors.Upload
	p.Set(sel.ReadyIndicator[0], browsertest.Visible("Uploaded"))
	p.Set(sel.Post[0], browsertest.Visible("Post"))
}

// formPage is an upload form that processes any file it is given and
// confirms any post. The interactivity toggles already match the defaults.
func formPage(cfg *config.Config) *browsertest.Page {
	sel := cfg.Selectors.Upload
	p := browsertest.New()
	p.Set(sel.FileInput[0], browser.ElementState{Enabled: true})
	p.Set(sel.Caption[0], browsertest.Visible(""))
	for _, c := range []config.Candidates{sel.Comment, sel.Stitch, sel.Duet} {
		p.Set(c[0], browser.ElementState{Visible: true, Enabled: true, Checked: true})
	}
	p.OnSetFiles = func(p *browsertest.Page, _ []string) {
		processed(p, cfg)
	}
	p.OnClick = func(p *browsertest.Page, _ string, el browser.Element) error {
		if el.Selector == sel.Post[0] {
			p.Set(sel.PostConfirmation[0], browsertest.Visible("Your video has been uploaded"))
		}
		return nil
	}
	return p
}

func newForm(cfg *config.Config, p browser.Page, task types.VideoTask) *form {
	return &form{
		c:      New(cfg, zap.NewNop()),
		page:   p,
		r:      resolver.New(p, cfg.Timeouts.PollInterval, zap.NewNop()),
		task:   task,
		logger: zap.NewNop(),
	}
}

func TestUploadSucceeds(t *testing.T) {
	cfg := testConfig()
	p := formPage(cfg)
	task := types.VideoTask{Path: "clip.mp4", Caption: "hello world"}

	o := New(cfg, zap.NewNop()).Upload(context.Background(), p, task)
	require.True(t, o.Succeeded(), o.Message)
	assert.Equal(t, 1, o.Attempts)
	assert.Equal(t, task, o.Task)

	abs, err := filepath.Abs("clip.mp4")
	require.NoError(t, err)
	files := p.ActionsOf(browsertest.ActSetFiles)
	require.Len(t, files, 1)
	assert.Equal(t, abs, files[0].Value)

	// The hidden file input was revealed before use
	assert.Len(t, p.ActionsOf(browsertest.ActReveal), 1)
	assert.Equal(t, "hello world ", p.Typed())
}

func TestUploadRetriesWholeForm(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.Retries = 1
	cfg.Timeouts.UploadProcessing = 50 * time.Millisecond
	p := formPage(cfg)

	var sets atomic.Int32
	p.OnSetFiles = func(p *browsertest.Page, _ []string) {
		// Only the second upload ever finishes processing
		if sets.Add(1) == 2 {
			processed(p, cfg)
		}
	}

	o := New(cfg, zap.NewNop()).Upload(context.Background(), p, types.VideoTask{Path: "clip.mp4"})
	require.True(t, o.Succeeded(), o.Message)
	assert.Equal(t, 2, o.Attempts)

	// The second attempt refreshes the page it is already on
	assert.Len(t, p.ActionsOf(browsertest.ActNavigate), 1)
	assert.Len(t, p.ActionsOf(browsertest.ActReload), 1)
}

func TestUploadExhaustsRetries(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.Retries = 1
	cfg.Timeouts.UploadProcessing = 50 * time.Millisecond
	p := formPage(cfg)
	p.OnSetFiles = nil

	o := New(cfg, zap.NewNop()).Upload(context.Background(), p, types.VideoTask{Path: "clip.mp4"})
	assert.False(t, o.Succeeded())
	assert.Equal(t, types.ReasonFailedToUpload, o.Reason)
	assert.Equal(t, 2, o.Attempts)
	assert.ErrorIs(t, o.Err, types.ErrFailedToUpload)
	assert.ErrorIs(t, o.Err, types.ErrUploadProcessingTimeout)
	assert.Len(t, p.ActionsOf(browsertest.ActSetFiles), 2)
}

func TestInjectFileBoundsStuckBrowser(t *testing.T) {
	cfg := testConfig()
	cfg.Timeouts.UploadProcessing = 100 * time.Millisecond
	p := formPage(cfg)

	release := make(chan struct{})
	finished := make(chan struct{})
	p.OnSetFiles = func(*browsertest.Page, []string) {
		// The browser ignores cancellation until released
		defer close(finished)
		<-release
	}

	start := time.Now()
	err := newForm(cfg, p, types.VideoTask{Path: "clip.mp4"}).injectFile(context.Background())
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, types.ErrUploadProcessingTimeout)
	assert.Less(t, elapsed, time.Second)

	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit")
	}
}

func TestUploadNavigationTimeout(t *testing.T) {
	cfg := testConfig()
	p := browsertest.New()

	o := New(cfg, zap.NewNop()).Upload(context.Background(), p, types.VideoTask{Path: "clip.mp4"})
	assert.False(t, o.Succeeded())
	assert.ErrorIs(t, o.Err, types.ErrNavigationTimeout)
	assert.Empty(t, p.ActionsOf(browsertest.ActSetFiles))
}

func TestUploadStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.Retries = 5
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(cfg, zap.NewNop()).Upload(ctx, formPage(cfg), types.VideoTask{Path: "clip.mp4"})
	assert.False(t, o.Succeeded())
	assert.Equal(t, 1, o.Attempts)
	assert.ErrorIs(t, o.Err, context.Canceled)
}

func TestDismissOptionalPrompts(t *testing.T) {
	cfg := testConfig()
	sel := cfg.Selectors.Upload

	t.Run("absent banner is fine", func(t *testing.T) {
		f := newForm(cfg, browsertest.New(), types.VideoTask{})
		assert.NoError(t, f.dismissConsentBanner(context.Background()))
	})

	t.Run("banner is clicked", func(t *testing.T) {
		p := browsertest.New()
		p.Set(sel.CookiesBanner[0], browsertest.Visible("Allow all"))
		require.NoError(t, newForm(cfg, p, types.VideoTask{}).dismissConsentBanner(context.Background()))
		require.Len(t, p.Clicks(), 1)
		assert.Equal(t, sel.CookiesBanner[0], p.Clicks()[0].Selector)
	})

	t.Run("split prompt skipped by config", func(t *testing.T) {
		skipCfg := testConfig()
		skipCfg.Upload.SkipSplitWindow = true
		p := browsertest.New()
		p.Set(sel.SplitWindow[0], browsertest.Visible("Not now"))
		require.NoError(t, newForm(skipCfg, p, types.VideoTask{}).dismissSplitPrompt(context.Background()))
		assert.Empty(t, p.Clicks())
	})
}

func TestSetInteractivity(t *testing.T) {
	cfg := testConfig()
	sel := cfg.Selectors.Upload

	t.Run("matching toggles are left alone", func(t *testing.T) {
		p := formPage(cfg)
		require.NoError(t, newForm(cfg, p, types.VideoTask{}).setInteractivity(context.Background()))
		require.NoError(t, newForm(cfg, p, types.VideoTask{}).setInteractivity(context.Background()))
		assert.Empty(t, p.Clicks())
	})

	t.Run("mismatched toggles are switched", func(t *testing.T) {
		p := browsertest.New()
		p.Set(sel.Comment[0], browsertest.Visible(""))
		// Styled switches hide the real checkbox
		p.Set(sel.Stitch[0], browser.ElementState{Enabled: true})

		require.NoError(t, newForm(cfg, p, types.VideoTask{}).setInteractivity(context.Background()))

		comment, _ := p.State(sel.Comment[0], 0)
		stitch, _ := p.State(sel.Stitch[0], 0)
		assert.True(t, comment.Checked)
		assert.True(t, stitch.Checked)

		var kinds []string
		for _, a := range p.Clicks() {
			kinds = append(kinds, a.Kind)
		}
		assert.Equal(t, []string{browsertest.ActClick, browsertest.ActClick, browsertest.ActScriptClick}, kinds)
	})

	t.Run("toggles can be turned off", func(t *testing.T) {
		offCfg := testConfig()
		offCfg.Upload.Duet = false
		p := formPage(offCfg)
		require.NoError(t, newForm(offCfg, p, types.VideoTask{}).setInteractivity(context.Background()))
		require.Len(t, p.Clicks(), 1)
		assert.Equal(t, sel.Duet[0], p.Clicks()[0].Selector)
	})
}

func TestSubmitPost(t *testing.T) {
	cfg := testConfig()
	sel := cfg.Selectors.Upload

	postPage := func(cfg *config.Config) *browsertest.Page {
		p := browsertest.New()
		p.SetURL(cfg.Paths.Upload)
		p.Set(sel.Post[0], browsertest.Visible("Post"))
		return p
	}

	t.Run("confirmed by indicator", func(t *testing.T) {
		p := formPage(cfg)
		p.SetURL(cfg.Paths.Upload)
		processed(p, cfg)
		assert.NoError(t, newForm(cfg, p, types.VideoTask{}).submitPost(context.Background()))
	})

	t.Run("waits once for a disabled button", func(t *testing.T) {
		p := postPage(cfg)
		p.Set(sel.Post[0], browser.ElementState{Visible: true, Text: "Post"})
		var looks atomic.Int32
		p.OnInspect = func(p *browsertest.Page, s string) {
			if s == sel.Post[0] && looks.Add(1) == 2 {
				p.Update(s, 0, func(st *browser.ElementState) { st.Enabled = true })
			}
		}
		require.NoError(t, newForm(cfg, p, types.VideoTask{}).submitPost(context.Background()))
		assert.Len(t, p.Clicks(), 1)
	})

	t.Run("still disabled", func(t *testing.T) {
		p := postPage(cfg)
		p.Set(sel.Post[0], browser.ElementState{Visible: true, Text: "Post"})
		err := newForm(cfg, p, types.VideoTask{}).submitPost(context.Background())
		assert.ErrorIs(t, err, types.ErrUploadProcessingTimeout)
		assert.Empty(t, p.Clicks())
	})

	t.Run("fallback button", func(t *testing.T) {
		p := postPage(cfg)
		p.Set(sel.PostFallback[0], browsertest.Visible("Post"))
		p.OnClick = func(_ *browsertest.Page, _ string, el browser.Element) error {
			if el.Selector == sel.Post[0] {
				return errors.New("detached")
			}
			return nil
		}
		require.NoError(t, newForm(cfg, p, types.VideoTask{}).submitPost(context.Background()))
		clicks := p.Clicks()
		require.Len(t, clicks, 2)
		assert.Equal(t, sel.PostFallback[0], clicks[1].Selector)
	})

	t.Run("presumed without confirmation", func(t *testing.T) {
		assert.NoError(t, newForm(cfg, postPage(cfg), types.VideoTask{}).submitPost(context.Background()))
	})

	t.Run("strict without confirmation", func(t *testing.T) {
		strict := testConfig()
		strict.Upload.SuccessPolicy = config.SuccessPolicyStrict
		err := newForm(strict, postPage(strict), types.VideoTask{}).submitPost(context.Background())
		assert.ErrorIs(t, err, types.ErrFailedToUpload)
	})

	t.Run("strict confirmed by leaving the upload page", func(t *testing.T) {
		strict := testConfig()
		strict.Upload.SuccessPolicy = config.SuccessPolicyStrict
		p := postPage(strict)
		p.OnClick = func(p *browsertest.Page, _ string, _ browser.Element) error {
			p.SetURL("https://www.tiktok.com/tiktokstudio/content")
			return nil
		}
		assert.NoError(t, newForm(strict, p, types.VideoTask{}).submitPost(context.Background()))
	})

	t.Run("strict confirmed by after-post button", func(t *testing.T) {
		strict := testConfig()
		strict.Upload.SuccessPolicy = config.SuccessPolicyStrict
		p := postPage(strict)
		p.OnClick = func(p *browsertest.Page, _ string, _ browser.Element) error {
			p.Set(sel.PostSuccessAffordance[0], browsertest.Visible("Manage your posts"))
			return nil
		}
		assert.NoError(t, newForm(strict, p, types.VideoTask{}).submitPost(context.Background()))
	})
}

func TestAddProductLink(t *testing.T) {
	cfg := testConfig()
	sel := cfg.Selectors.Upload
	task := types.VideoTask{ProductID: "222"}

	t.Run("missing dialog does not fail the upload", func(t *testing.T) {
		assert.NoError(t, newForm(cfg, browsertest.New(), task).addProductLink(context.Background()))
	})

	t.Run("selects the matching product", func(t *testing.T) {
		p := browsertest.New()
		p.Set(sel.ProductLinkButton[0], browsertest.Visible("Add link"))
		p.Set(sel.ProductLinkNext[0], browsertest.Visible("Next"))
		p.Set(sel.ProductSearchInput[0], browsertest.Visible(""))
		p.Set(sel.ProductResult[0], browsertest.Visible("Widget 111"), browsertest.Visible("Gadget 222"))
		p.Set(sel.ProductConfirm[0], browsertest.Visible("Add"))

		require.NoError(t, newForm(cfg, p, task).addProductLink(context.Background()))

		var row *browsertest.Action
		for _, a := range p.Clicks() {
			if a.Selector == sel.ProductResult[0] {
				row = &a
			}
		}
		require.NotNil(t, row)
		assert.Equal(t, 1, row.Index)
		assert.Contains(t, p.Typed(), "222")
		assert.Equal(t, sel.ProductConfirm[0], p.Clicks()[len(p.Clicks())-1].Selector)
	})
}
