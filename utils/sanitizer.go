package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	// EmailPolicy keeps the subset of markup mail clients commonly emit.
	// Scripts, event handlers and unknown schemes never survive it.
	EmailPolicy *bluemonday.Policy
	// StrictPolicy removes all markup.
	StrictPolicy *bluemonday.Policy
)

func init() {
	StrictPolicy = bluemonday.StrictPolicy()

	EmailPolicy = bluemonday.UGCPolicy()
	EmailPolicy.AllowElements("p", "br", "div", "span", "h1", "h2", "h3", "h4", "h5", "h6")
	EmailPolicy.AllowElements("strong", "em", "u", "s", "code", "pre")
	EmailPolicy.AllowElements("ul", "ol", "li", "blockquote")
	EmailPolicy.AllowElements("table", "thead", "tbody", "tr", "th", "td")
	EmailPolicy.AllowAttrs("href").OnElements("a")
	EmailPolicy.AllowAttrs("alt", "title", "width", "height").OnElements("img")
	EmailPolicy.RequireParseableURLs(true)
	EmailPolicy.AllowURLSchemes("http", "https", "mailto")
}

// SanitizeHTML reduces untrusted markup to the allowed email subset.
func SanitizeHTML(s string) string {
	return EmailPolicy.Sanitize(s)
}

// StripHTML extracts the text content of untrusted markup. Script and style
// bodies are dropped entirely, entities are decoded by the tokenizer.
func StripHTML(s string) string {
	tok := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0

	for {
		switch tok.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := tok.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li", "tr":
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			if n := string(name); n == "script" || n == "style" {
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tok.Text())
			}
		}
	}
}

// Preview normalizes whitespace and truncates on a word boundary.
func Preview(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= max {
		return text
	}
	if idx := strings.LastIndex(text[:max], " "); idx > 0 {
		return text[:idx] + "..."
	}
	return text[:max] + "..."
}
