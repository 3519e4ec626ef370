// Package caption prepares video captions for typing into the upload form.
package caption

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind is how a caption token is typed.
type Kind int

const (
	Word Kind = iota
	Hashtag
	Mention
)

func (k Kind) String() string {
	switch k {
	case Hashtag:
		return "hashtag"
	case Mention:
		return "mention"
	default:
		return "word"
	}
}

// Token is one space-separated run of a caption.
type Token struct {
	Kind Kind
	Text string
}

// Clean drops invalid UTF-8 and control characters other than newlines and
// tabs, then trims surrounding space.
func Clean(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// Prepare cleans and truncates a caption for typing.
func Prepare(s string, max int) string {
	return Truncate(Clean(s), max)
}

// Tokenize splits s on spaces. Empty runs are dropped; a run starting with
// "#" is a hashtag and one starting with "@" a mention. A lone "#" or "@" is
// a plain word.
func Tokenize(s string) []Token {
	var tokens []Token
	for _, field := range strings.Split(s, " ") {
		if field == "" {
			continue
		}
		kind := Word
		if len(field) > 1 {
			switch field[0] {
			case '#':
				kind = Hashtag
			case '@':
				kind = Mention
			}
		}
		tokens = append(tokens, Token{Kind: kind, Text: field})
	}
	return tokens
}

// MentionName returns the user name a mention refers to.
func MentionName(t Token) string {
	return strings.TrimPrefix(t.Text, "@")
}

// MatchesUser reports whether a suggestion entry names user. Entries look
// like "alice Alice Smith"; only the first word is the user id.
func MatchesUser(entry, user string) bool {
	fields := strings.Fields(entry)
	if len(fields) == 0 {
		return false
	}
	return strings.EqualFold(fields[0], user)
}
