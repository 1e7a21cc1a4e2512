// Package render turns chat messages into display output: HTML fragments for
// embedding hosts, styled terminal lines, and history exports.
package render

import (
	"html"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// FormatHTML escapes text, turns bare URLs into anchors and newlines into <br>.
func FormatHTML(text string) string {
	safe := html.EscapeString(text)
	safe = urlPattern.ReplaceAllStringFunc(safe, func(url string) string {
		return `<a href="` + url + `" target="_blank" rel="noopener noreferrer" class="chat-link">` + url + `</a>`
	})
	return strings.ReplaceAll(safe, "\n", "<br>")
}

// Animatable reports whether a formatted message may be typed out character
// by character. Messages carrying links or line breaks appear at once.
func Animatable(text string, enabled bool) bool {
	if !enabled {
		return false
	}
	formatted := FormatHTML(text)
	return !strings.Contains(formatted, "<a ") && !strings.Contains(formatted, "<br>")
}
