// Package content loads the documentation sections from disk and maps
// page URLs back to their source.
package content

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/krakend/docsite-search/internal/indexing"
)

// Section is a documentation area served under a URL prefix
type Section struct {
	Name   string // Directory name under the content root
	Prefix string // URL prefix, no trailing slash
}

// DefaultSections are the sections of the documentation site
var DefaultSections = []Section{
	{Name: "product-docs", Prefix: "/docs/product-docs"},
	{Name: "scripts", Prefix: "/docs/scripts"},
	{Name: "self-hosting", Prefix: "/docs/self-hosting"},
	{Name: "changelog", Prefix: "/changelog"},
	{Name: "legal", Prefix: "/legal"},
	{Name: "blog", Prefix: "/blog"},
}

// Page is a loaded source page
type Page struct {
	indexing.SourcePage
	Slugs []string // Path below the section prefix
	Path  string   // File the page was loaded from, relative to the section
	Body  string   // Markdown body without front matter; empty for JSON pages
}

// Source exposes the pages of one section
type Source interface {
	Name() string
	Prefix() string
	Pages() []*Page
	Page(slugs []string) (*Page, bool)
}

// DirSource is a Source loaded from a directory tree
type DirSource struct {
	section Section
	pages   []*Page
	bySlug  map[string]*Page
}

func (s *DirSource) Name() string   { return s.section.Name }
func (s *DirSource) Prefix() string { return s.section.Prefix }

// Pages returns the pages ordered by URL
func (s *DirSource) Pages() []*Page { return s.pages }

// Page returns the page at slugs, if any
func (s *DirSource) Page(slugs []string) (*Page, bool) {
	p, ok := s.bySlug[strings.Join(slugs, "/")]
	return p, ok
}

// pageSlugs maps a file path to its slugs; index files map to their directory
func pageSlugs(file string) []string {
	trimmed := strings.TrimSuffix(file, path.Ext(file))
	parts := strings.Split(trimmed, "/")
	if parts[len(parts)-1] == "index" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func pageURL(prefix string, slugs []string) string {
	if len(slugs) == 0 {
		return prefix
	}
	return prefix + "/" + strings.Join(slugs, "/")
}

func isPageFile(name string) bool {
	switch path.Ext(name) {
	case ".md", ".mdx", ".json":
		return true
	}
	return false
}

// LoadDir loads every markdown and JSON page under fsys as one section
func LoadDir(fsys fs.FS, section Section) (*DirSource, error) {
	src := &DirSource{section: section, bySlug: make(map[string]*Page)}

	err := fs.WalkDir(fsys, ".", func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if file != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !isPageFile(file) || strings.HasPrefix(d.Name(), "_") {
			return nil
		}

		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		page, err := loadPage(section, file, data)
		if err != nil {
			return err
		}

		key := strings.Join(page.Slugs, "/")
		if other, dup := src.bySlug[key]; dup {
			return fmt.Errorf("%s and %s both map to %s", other.Path, file, page.URL)
		}
		src.bySlug[key] = page
		src.pages = append(src.pages, page)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load section %s: %w", section.Name, err)
	}

	sort.Slice(src.pages, func(i, j int) bool { return src.pages[i].URL < src.pages[j].URL })
	return src, nil
}

func loadPage(section Section, file string, data []byte) (*Page, error) {
	slugs := pageSlugs(file)
	url := pageURL(section.Prefix, slugs)
	page := &Page{
		SourcePage: indexing.SourcePage{
			ID:  strings.TrimPrefix(url, "/"),
			URL: url,
		},
		Slugs: slugs,
		Path:  file,
	}

	if path.Ext(file) == ".json" {
		jp, err := ParseJSONPage(file, data)
		if err != nil {
			return nil, err
		}
		structured := jp.Structured
		page.Title = jp.Title
		page.Description = jp.Description
		page.Tag = jp.Tag
		page.Structured = &structured
		return page, nil
	}

	fm, body, err := ParseFrontMatter(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	structured := Structure(body)
	page.Title = fm.Title
	page.Description = fm.Description
	page.Tag = fm.Tag
	page.Body = body
	page.Structured = &structured

	if page.Title == "" {
		page.Title = fallbackTitle(&structured, slugs, section)
	}
	return page, nil
}

// fallbackTitle uses the first heading, then the last slug, then the section name
func fallbackTitle(structured *indexing.StructuredData, slugs []string, section Section) string {
	if len(structured.Headings) > 0 {
		return structured.Headings[0].Content
	}
	if len(slugs) > 0 {
		return slugs[len(slugs)-1]
	}
	return section.Name
}
