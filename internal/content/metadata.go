package content

import (
	"regexp"
	"strconv"
	"strings"
)

var markdownLinkRegex = regexp.MustCompile(`!?\[([^\]]*)\]\([^\)]+\)`)
var inlineMarkupRegex = regexp.MustCompile("(\\*\\*|__|`)")

// StripMarkdownLinks removes markdown link and image syntax, keeping only the text
// Example: "[Text](url)" -> "Text"
func StripMarkdownLinks(text string) string {
	return markdownLinkRegex.ReplaceAllString(text, "$1")
}

// StripInlineMarkup removes links, code spans and bold markers
func StripInlineMarkup(text string) string {
	return inlineMarkupRegex.ReplaceAllString(StripMarkdownLinks(text), "")
}

// CreateAnchor generates a URL anchor from heading text
func CreateAnchor(text string) string {
	anchor := strings.ToLower(strings.TrimSpace(StripInlineMarkup(text)))
	anchor = strings.ReplaceAll(anchor, " ", "-")
	// Keep letters, digits and hyphens
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r > 127 {
			return r
		}
		return -1
	}, anchor)
}

// anchorSet hands out unique anchors within one page
type anchorSet map[string]bool

// unique returns base, or base suffixed -1, -2... when already used
func (s anchorSet) unique(base string) string {
	id := base
	for n := 1; s[id]; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	s[id] = true
	return id
}
