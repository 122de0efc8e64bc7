package assistant

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxMessageLen = 1000

var (
	scriptBlock   = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	scriptTag     = regexp.MustCompile(`(?i)</?script\b[^>]*>`)
	inlineHandler = regexp.MustCompile(`(?i)\s*\bon[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
)

// Sanitize drops script elements and inline event handlers from a chat
// message and caps its length.
func Sanitize(msg string) string {
	msg = scriptBlock.ReplaceAllString(msg, "")
	msg = scriptTag.ReplaceAllString(msg, "")
	msg = inlineHandler.ReplaceAllString(msg, "")
	msg = strings.TrimSpace(msg)
	if utf8.RuneCountInString(msg) > MaxMessageLen {
		msg = string([]rune(msg)[:MaxMessageLen])
	}
	return msg
}
