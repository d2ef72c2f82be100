package news

import (
	"strings"
	"unicode/utf8"
)

// Denied reports whether title contains any deny-listed phrase, case-insensitively.
func Denied(title string, denyList []string) bool {
	t := strings.ToLower(title)
	for _, phrase := range denyList {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p != "" && strings.Contains(t, p) {
			return true
		}
	}
	return false
}

// CleanBody trims each line, drops blanks and "subscribe" nags.
func CleanBody(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(strings.ToLower(line), "subscribe") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// Truncate cuts s to n runes and appends "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) > n {
		s = string([]rune(s)[:n])
	}
	return s + "..."
}
