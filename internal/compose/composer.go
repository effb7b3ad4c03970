package compose

import (
	"strings"
	"unicode/utf8"
)

// MaxPostRunes is the upper bound on composed post length.
const MaxPostRunes = 280

const ellipsis = "…"

// Composer builds bounded-length social media post text from articles.
type Composer struct {
	maxRunes int
}

// NewComposer constructs a Composer. A non-positive limit selects
// MaxPostRunes.
func NewComposer(maxRunes int) *Composer {
	if maxRunes <= 0 {
		maxRunes = MaxPostRunes
	}
	return &Composer{maxRunes: maxRunes}
}

// Compose builds the post text: title, an optional summary fragment, and
// the link. The link is never truncated; the text before it is shortened on
// a word boundary with an ellipsis to fit the rune budget.
func (c *Composer) Compose(title, summary, link string) string {
	title = strings.TrimSpace(title)
	summary = strings.TrimSpace(summary)
	link = strings.TrimSpace(link)

	budget := c.maxRunes
	if link != "" {
		// Reserve the link plus a separating space.
		budget -= utf8.RuneCountInString(link) + 1
	}
	if budget < 0 {
		budget = 0
	}

	body := title
	if summary != "" && body != "" {
		body = body + " — " + summary
	} else if body == "" {
		body = summary
	}
	body = truncateOnWord(body, budget)

	switch {
	case body == "":
		return link
	case link == "":
		return body
	default:
		return body + " " + link
	}
}

// truncateOnWord shortens text to at most maxRunes runes, cutting at the
// last word boundary and appending an ellipsis.
func truncateOnWord(text string, maxRunes int) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	if maxRunes <= 0 {
		return ""
	}
	if maxRunes == 1 {
		return ellipsis
	}

	runes := []rune(text)
	// Leave room for the ellipsis itself.
	truncated := string(runes[:maxRunes-1])
	if idx := strings.LastIndexFunc(truncated, func(r rune) bool { return r == ' ' }); idx > 0 {
		truncated = truncated[:idx]
	}
	return strings.TrimRight(truncated, " .,;:-—") + ellipsis
}
