package content

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/krakend/docsite-search/internal/indexing"
)

// FrontMatter is the YAML header of a markdown page
type FrontMatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Tag         string `yaml:"tag"`
}

var frontMatterDelim = []byte("---")

// ParseFrontMatter splits a markdown document into its front matter and body.
// Documents without front matter return a zero FrontMatter and the input as body.
func ParseFrontMatter(data []byte) (FrontMatter, string, error) {
	var fm FrontMatter

	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(data, frontMatterDelim) {
		return fm, string(data), nil
	}

	rest := data[len(frontMatterDelim):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return fm, string(data), nil
	}
	rest = rest[nl+1:]

	end := bytes.Index(rest, []byte("\n---"))
	var header []byte
	switch {
	case bytes.HasPrefix(rest, frontMatterDelim):
		header, rest = nil, rest[len(frontMatterDelim):]
	case end >= 0:
		header, rest = rest[:end], rest[end+1+len(frontMatterDelim):]
	default:
		return fm, "", fmt.Errorf("unterminated front matter")
	}

	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, "", fmt.Errorf("invalid front matter: %w", err)
	}
	if nl := bytes.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		rest = nil
	}
	return fm, string(rest), nil
}

var (
	headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	// A paragraph that is a single HTML/JSX element, e.g. <img src="..." /> or <iframe ...></iframe>
	loneElementRegex = regexp.MustCompile(`(?s)^<([A-Za-z][A-Za-z0-9]*)\b[^>]*?(/>|>.*</([A-Za-z][A-Za-z0-9]*)>|>)$`)
	tagRegex         = regexp.MustCompile(`<[^>]+>`)
	esmLineRegex     = regexp.MustCompile(`^(import|export)\s`)
)

// structurer accumulates blocks while scanning markdown lines
type structurer struct {
	data      indexing.StructuredData
	anchors   anchorSet
	heading   string
	paragraph []string
	fence     string
	code      []string
}

func (s *structurer) addBlock(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.data.Contents = append(s.data.Contents, indexing.Block{Content: text, Heading: s.heading})
}

func (s *structurer) flushParagraph() {
	if len(s.paragraph) == 0 {
		return
	}
	text := strings.TrimSpace(strings.Join(s.paragraph, "\n"))
	s.paragraph = s.paragraph[:0]

	if m := loneElementRegex.FindStringSubmatch(text); m != nil && (m[3] == "" || strings.EqualFold(m[1], m[3])) {
		// Elements wrapping text keep the text, empty ones collapse to their tag name
		if inner := strings.TrimSpace(tagRegex.ReplaceAllString(text, "")); inner != "" {
			s.addBlock(StripMarkdownLinks(inner))
			return
		}
		s.addBlock(strings.ToLower(m[1]))
		return
	}
	if esmLineRegex.MatchString(text) {
		return
	}
	s.addBlock(StripMarkdownLinks(text))
}

func (s *structurer) addHeading(raw string) {
	text := strings.TrimSpace(StripInlineMarkup(raw))
	if text == "" {
		return
	}
	base := CreateAnchor(text)
	if base == "" {
		base = "section"
	}
	id := s.anchors.unique(base)
	s.data.Headings = append(s.data.Headings, indexing.Heading{ID: id, Content: text})
	s.heading = id
	s.addBlock(text)
}

// Structure splits a markdown body into headings and content blocks.
// Every heading also yields a block with its text so the heading itself is searchable.
func Structure(markdown string) indexing.StructuredData {
	s := &structurer{anchors: make(anchorSet)}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)

		if s.fence != "" {
			if strings.HasPrefix(trimmed, s.fence) {
				s.addBlock(strings.Join(s.code, "\n"))
				s.fence = ""
				s.code = nil
				continue
			}
			s.code = append(s.code, line)
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~"):
			s.flushParagraph()
			s.fence = trimmed[:3]
		case trimmed == "":
			s.flushParagraph()
		case headingRegex.MatchString(trimmed):
			s.flushParagraph()
			s.addHeading(headingRegex.FindStringSubmatch(trimmed)[2])
		default:
			s.paragraph = append(s.paragraph, trimmed)
		}
	}

	// An unterminated fence keeps its code
	if s.fence != "" {
		s.addBlock(strings.Join(s.code, "\n"))
	}
	s.flushParagraph()

	if s.data.Headings == nil {
		s.data.Headings = []indexing.Heading{}
	}
	if s.data.Contents == nil {
		s.data.Contents = []indexing.Block{}
	}
	return s.data
}
