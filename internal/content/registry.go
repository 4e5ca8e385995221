package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"sort"
	"strings"

	"github.com/krakend/docsite-search/internal/indexing"
)

// ErrPageNotFound is returned when a URL does not resolve to a loaded page
var ErrPageNotFound = errors.New("page not found")

// Registry dispatches page URLs to the source owning the longest matching prefix
type Registry struct {
	sources []Source
}

// NewRegistry builds a registry over sources
func NewRegistry(sources ...Source) *Registry {
	sorted := append([]Source(nil), sources...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix()) > len(sorted[j].Prefix())
	})
	return &Registry{sources: sorted}
}

// LoadRegistry loads each section from its directory under root.
// Missing section directories are skipped with a warning.
func LoadRegistry(root fs.FS, sections []Section) (*Registry, error) {
	var sources []Source
	for _, section := range sections {
		info, err := fs.Stat(root, section.Name)
		if err != nil || !info.IsDir() {
			log.Printf("Warning: content section %s not found, skipping", section.Name)
			continue
		}
		sub, err := fs.Sub(root, section.Name)
		if err != nil {
			return nil, fmt.Errorf("open section %s: %w", section.Name, err)
		}
		src, err := LoadDir(sub, section)
		if err != nil {
			return nil, err
		}
		log.Printf("✓ Loaded %d pages from %s", len(src.Pages()), section.Name)
		sources = append(sources, src)
	}
	return NewRegistry(sources...), nil
}

// normalizePath reduces a page link to its bare path: no host, query, anchor or trailing slash
func normalizePath(link string) string {
	if u, err := url.Parse(link); err == nil {
		link = u.Path
	} else if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	if len(link) > 1 {
		link = strings.TrimSuffix(link, "/")
	}
	return link
}

// Lookup resolves a page URL, with or without anchor, to its page
func (r *Registry) Lookup(link string) (*Page, bool) {
	p := normalizePath(link)
	for _, src := range r.sources {
		prefix := src.Prefix()
		switch {
		case p == prefix:
			return src.Page(nil)
		case strings.HasPrefix(p, prefix+"/"):
			return src.Page(strings.Split(strings.TrimPrefix(p, prefix+"/"), "/"))
		}
	}
	return nil, false
}

// Sources returns the registered sources, longest prefix first
func (r *Registry) Sources() []Source {
	return r.sources
}

// Pages returns every page of every source
func (r *Registry) Pages() []*Page {
	var pages []*Page
	for _, src := range r.sources {
		pages = append(pages, src.Pages()...)
	}
	return pages
}

// SourcePages returns every page in the form the indexer consumes
func (r *Registry) SourcePages() []indexing.SourcePage {
	pages := r.Pages()
	out := make([]indexing.SourcePage, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.SourcePage)
	}
	return out
}

// Text renders the full text of a page: title, description, then every
// content block with headings marked
func (r *Registry) Text(ctx context.Context, page *Page) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if page == nil || page.Structured == nil {
		return "", ErrPageNotFound
	}

	var b strings.Builder
	b.WriteString("# " + page.Title + "\n\n")
	if page.Description != "" {
		b.WriteString(page.Description + "\n\n")
	}

	written := make(map[string]bool)
	for _, block := range page.Structured.Contents {
		text := strings.TrimSpace(block.Content)
		if text == "" || text == "img" || text == "iframe" || text == "center" {
			continue
		}
		if h, ok := page.Structured.Heading(block.Heading); ok && h.Content == block.Content && !written[h.ID] {
			written[h.ID] = true
			b.WriteString("## " + StripMarkdownLinks(text) + "\n\n")
			continue
		}
		b.WriteString(StripMarkdownLinks(text) + "\n\n")
	}
	return strings.TrimSpace(b.String()), nil
}
