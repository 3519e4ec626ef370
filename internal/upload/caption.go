package upload

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/browser"
	"github.com/ibeckermayer/tokpost/internal/caption"
	"github.com/ibeckermayer/tokpost/internal/resolver"
	"github.com/ibeckermayer/tokpost/internal/types"
)

// setCaption types the caption a token at a time so hashtags and mentions
// go through the editor's suggestion box. If typing fails part way, the
// field is cleared and the cleaned caption typed again as plain text.
func (f *form) setCaption(ctx context.Context) error {
	cleaned := caption.Clean(f.task.Caption)
	text := caption.Truncate(cleaned, f.c.upload.MaxCaptionLength)
	if text != cleaned {
		f.logger.Info("Caption truncated", zap.Int("max", f.c.upload.MaxCaptionLength))
	}

	field, err := f.r.Find(ctx, f.c.selectors.Upload.Caption, resolver.Options{Timeout: f.c.timeouts.Explicit})
	if err != nil {
		return fmt.Errorf("%w: caption field: %w", types.ErrInteractionFailed, err)
	}
	if err := f.clearField(ctx, field); err != nil {
		return fmt.Errorf("%w: clearing caption: %w", types.ErrInteractionFailed, err)
	}

	err = f.typeTokens(ctx, caption.Tokenize(text))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	f.logger.Warn("Caption typing failed, retyping as plain text", zap.Error(err))
	if err := f.clearField(ctx, field); err != nil {
		return fmt.Errorf("%w: clearing caption: %w", types.ErrInteractionFailed, err)
	}
	if err := f.page.Type(ctx, cleaned); err != nil {
		return fmt.Errorf("%w: typing caption: %w", types.ErrInteractionFailed, err)
	}
	return nil
}

// clearField focuses field and deletes whatever the page pre-filled.
func (f *form) clearField(ctx context.Context, field browser.Element) error {
	if err := f.r.Click(ctx, field); err != nil {
		return err
	}
	if err := f.page.Focus(ctx, field); err != nil {
		return err
	}
	current, err := f.page.Text(ctx, field)
	if err != nil {
		return err
	}
	if current == "" {
		return nil
	}
	if err := f.page.SelectAll(ctx, field); err != nil {
		return err
	}
	return f.page.Type(ctx, kb.Backspace)
}

func (f *form) typeTokens(ctx context.Context, tokens []caption.Token) error {
	for _, tok := range tokens {
		var err error
		switch tok.Kind {
		case caption.Hashtag:
			err = f.typeHashtag(ctx, tok)
		case caption.Mention:
			err = f.typeMention(ctx, tok)
		default:
			err = f.page.Type(ctx, tok.Text+" ")
		}
		if err != nil {
			return fmt.Errorf("%s %q: %w", tok.Kind, tok.Text, err)
		}
	}
	return nil
}

// typeHashtag types tag and accepts the top suggestion. Without a
// suggestion box the tag stays as typed.
func (f *form) typeHashtag(ctx context.Context, tok caption.Token) error {
	if err := f.page.Type(ctx, tok.Text); err != nil {
		return err
	}
	// Space then backspace makes the editor look the tag up
	if err := f.page.Type(ctx, " "+kb.Backspace); err != nil {
		return err
	}

	shown, err := f.r.Exists(ctx, f.c.selectors.Upload.MentionBox, resolver.Options{Timeout: f.c.timeouts.Implicit})
	if err != nil {
		return err
	}
	if !shown {
		f.logger.Debug("No hashtag suggestions, keeping text", zap.String("hashtag", tok.Text))
		return f.page.Type(ctx, " ")
	}
	if err := resolver.Sleep(ctx, f.c.timeouts.HashtagWait); err != nil {
		return err
	}
	return f.page.Type(ctx, kb.Enter)
}

// typeMention types the mention and picks the suggestion whose user id
// matches. Without a match the mention stays as typed.
func (f *form) typeMention(ctx context.Context, tok caption.Token) error {
	if err := f.page.Type(ctx, tok.Text+" "); err != nil {
		return err
	}
	if err := resolver.Sleep(ctx, f.c.timeouts.Settle); err != nil {
		return err
	}
	if err := f.page.Type(ctx, kb.Backspace); err != nil {
		return err
	}

	user := caption.MentionName(tok)
	index := -1
	// Arrow keys step through hidden rows too, so they count toward the index
	ok, err := resolver.Poll(ctx, f.c.timeouts.PollInterval, f.c.timeouts.MentionLookup, func(ctx context.Context) bool {
		for i, entry := range f.r.Snapshot(ctx, f.c.selectors.Upload.MentionUserID, resolver.Options{AllowHidden: true}) {
			if entry.State.Visible && caption.MatchesUser(entry.State.Text, user) {
				index = i
				return true
			}
		}
		return false
	})
	if err != nil {
		return err
	}
	if !ok {
		f.logger.Debug("No matching user, keeping text", zap.String("mention", tok.Text))
		return f.page.Type(ctx, " ")
	}
	return f.page.Type(ctx, strings.Repeat(kb.ArrowDown, index)+kb.Enter)
}
