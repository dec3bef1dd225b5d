package http

import (
	"html/template"
	"strings"
	"time"
)

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// barWidth scales amount against max to a percentage for the category chart.
// Non-zero amounts get at least 2% so they stay visible.
func barWidth(amount, max int64) int {
	if max <= 0 || amount <= 0 {
		return 0
	}
	width := int((amount*100 + max/2) / max)
	if width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"timestamp": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("02.01.2006 15:04")
		},
		"selected": func(current, option string) bool { return current == option },
	}
}
