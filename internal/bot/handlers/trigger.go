package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/edgard/dadbot/internal/chat"
)

const responseTemplate = "Hi %s, I'm Dad."

// editFallbackPrefix marks edited text for clients that do not render edits.
const editFallbackPrefix = " * "

// triggerWords are matched against lower-cased tokens.
var triggerWords = map[string]struct{}{
	"im":   {},
	"i'm":  {},
	"imma": {},
	"i’m":  {},
}

// tokenize splits on single spaces only. Consecutive spaces yield empty tokens.
func tokenize(body string) []string {
	return strings.Split(body, " ")
}

func isTriggerWord(token string) bool {
	_, ok := triggerWords[strings.ToLower(token)]
	return ok
}

// triggerIndex returns the index of the first trigger word in tokens, or -1.
func triggerIndex(tokens []string) int {
	for i, token := range tokens {
		if isTriggerWord(token) {
			return i
		}
	}
	return -1
}

// ContainsTrigger reports whether body has at least one trigger word.
func ContainsTrigger(body string) bool {
	return triggerIndex(tokenize(body)) >= 0
}

// Validate reports whether evt is a candidate for a reply: a non-empty plain
// text message, not sent by selfID, containing a trigger word. For edits the
// replacement content is checked.
func Validate(selfID string, evt *chat.Event) bool {
	if evt == nil || evt.Content == nil {
		return false
	}
	body := evt.Body()
	if body == "" {
		return false
	}
	if evt.Kind() != chat.KindText {
		return false
	}
	if evt.Sender == selfID {
		return false
	}
	return ContainsTrigger(body)
}

// IsRecent reports whether evt was sent no more than maxAge before now.
// A non-positive maxAge disables the check.
func IsRecent(evt *chat.Event, now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return true
	}
	if evt.Timestamp.IsZero() {
		return false
	}
	return now.Sub(evt.Timestamp) <= maxAge
}

// ExtractName returns the one or two tokens following the first trigger word
// in body, joined by a single space. It returns "" when there is no trigger
// word or nothing follows it.
func ExtractName(body string) string {
	tokens := tokenize(body)
	i := triggerIndex(tokens)
	if i < 0 || i+1 >= len(tokens) || tokens[i+1] == "" {
		return ""
	}

	name := tokens[i+1]
	if i+2 < len(tokens) && tokens[i+2] != "" {
		name += " " + tokens[i+2]
	}
	return name
}

// ResponseText renders the reply for name.
func ResponseText(name string) string {
	return fmt.Sprintf(responseTemplate, name)
}

// EditFallback renders the plain body shown for an edited reply.
func EditFallback(text string) string {
	return editFallbackPrefix + text
}
