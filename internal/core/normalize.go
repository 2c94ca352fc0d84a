package core

import (
	"fmt"
	"html"
	"strings"

	"mvdan.cc/xurls/v2"
)

var (
	// Rich-text editors submit multi-line input as <div>/<br> markup.
	// An empty <div></div> pair stands for a blank line.
	editorMarkup = strings.NewReplacer(
		"<div></div>", "\n",
		"<div>", "",
		"</div>", "",
		"<br>", "\n",
		"<br/>", "\n",
		"<br />", "\n",
	)
	newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

	relaxedURL = xurls.Relaxed()
	strictURL  = xurls.Strict()
)

// StripEditorMarkup turns editor markup into plain text with real newlines.
func StripEditorMarkup(text string) string {
	return editorMarkup.Replace(text)
}

// Linkify escapes text for HTML and wraps bare URLs, domains and e-mail
// addresses in anchors.
func Linkify(text string) string {
	matches := relaxedURL.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return html.EscapeString(text)
	}

	var b strings.Builder
	last := 0
	for _, loc := range matches {
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		match := text[loc[0]:loc[1]]
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, html.EscapeString(linkTarget(match)), html.EscapeString(match))
		last = loc[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}

func linkTarget(match string) string {
	switch {
	case strictURL.FindString(match) == match:
		return match
	case strings.Contains(match, "@") && !strings.Contains(match, "/"):
		return "mailto:" + match
	default:
		return "http://" + match
	}
}

// LineBreaks converts newlines into <br> markup.
func LineBreaks(text string) string {
	return strings.ReplaceAll(newlines.Replace(text), "\n", "<br>")
}

// NormalizeMessage runs the full text pipeline. stored is plain text with real
// newlines; display is escaped, linked and uses <br> for line breaks.
func NormalizeMessage(raw string) (stored, display string) {
	stored = StripEditorMarkup(raw)
	display = LineBreaks(Linkify(stored))
	return stored, display
}
