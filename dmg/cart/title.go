package cart

import (
	"strings"
	"unicode"
)

// cleanTitle drops the NUL padding of a header title and replaces
// non-printable characters with question marks.
func cleanTitle(raw []byte) string {
	if i := strings.IndexByte(string(raw), 0); i >= 0 {
		raw = raw[:i]
	}

	runes := make([]rune, 0, len(raw))
	for _, b := range raw {
		r := rune(b)
		if !unicode.IsPrint(r) {
			r = '?'
		}
		runes = append(runes, r)
	}

	return strings.TrimSpace(string(runes))
}
