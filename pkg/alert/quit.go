package alert

import (
	"strings"
	"unicode"
)

var quitWords = map[string]bool{"exit": true, "quit": true, "stop": true}

// IsQuit reports whether the whole utterance is a quit word, ignoring
// case and surrounding punctuation. "Stop." quits; "stop the music" does not.
func IsQuit(utterance string) bool {
	w := strings.TrimFunc(strings.ToLower(utterance), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return quitWords[w]
}
