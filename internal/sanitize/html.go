package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// plain strips every tag and attribute.
	plain = bluemonday.StrictPolicy()

	// rich keeps user-generated-content formatting (paragraphs, emphasis,
	// lists, links with safe schemes) and drops scripts, frames, handlers and
	// inline styles.
	rich = bluemonday.UGCPolicy()
)

// Text reduces input to trimmed plain text. Use for names, types and locations.
func Text(input string) string {
	return strings.TrimSpace(plain.Sanitize(input))
}

// HTML keeps safe formatting. Use for event descriptions.
func HTML(input string) string {
	return strings.TrimSpace(rich.Sanitize(input))
}

// InPlace runs Text over each referenced string.
func InPlace(fields ...*string) {
	for _, field := range fields {
		if field != nil {
			*field = Text(*field)
		}
	}
}
