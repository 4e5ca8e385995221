package content_test

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/krakend/docsite-search/internal/content"
)

const jsonPage = `{
  "title": "Lua scripting",
  "description": "Extend with Lua",
  "tag": "ee",
  "structured": {
    "headings": [{"id": "hooks", "content": "Hooks"}],
    "contents": [
      {"content": "Hooks", "heading": "hooks"},
      {"content": "Run code before the backend call.", "heading": "hooks"}
    ]
  }
}`

func testContent() fstest.MapFS {
	return fstest.MapFS{
		"product-docs/index.md": {Data: []byte("---\ntitle: Product docs\ndescription: Start here\n---\nWelcome.\n")},
		"product-docs/guides/setup.mdx": {Data: []byte("---\ntitle: Setup\ntag: ce\n---\n## Install\n\nRun the [installer](/x).\n")},
		"product-docs/guides/index.md":  {Data: []byte("# Guides\n\nAll guides.\n")},
		"product-docs/_partial.md":      {Data: []byte("ignored")},
		"product-docs/.hidden/page.md":  {Data: []byte("ignored")},
		"product-docs/assets/logo.png":  {Data: []byte{0x89}},
		"scripts/lua.json":              {Data: []byte(jsonPage)},
		"blog/2024/release.md":          {Data: []byte("---\ntitle: Release\n---\nNews.\n")},
	}
}

func mustSub(t *testing.T, fsys fs.FS, dir string) fs.FS {
	t.Helper()
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		t.Fatalf("fs.Sub(%s) error = %v", dir, err)
	}
	return sub
}

func TestLoadDir(t *testing.T) {
	fsys := testContent()
	src, err := content.LoadDir(mustSub(t, fsys, "product-docs"), content.Section{Name: "product-docs", Prefix: "/docs/product-docs"})
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}

	pages := src.Pages()
	var urls []string
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	want := []string{"/docs/product-docs", "/docs/product-docs/guides", "/docs/product-docs/guides/setup"}
	if strings.Join(urls, ",") != strings.Join(want, ",") {
		t.Fatalf("LoadDir() urls = %v, want %v", urls, want)
	}

	root, ok := src.Page(nil)
	if !ok {
		t.Fatal("index page should map to the section root")
	}
	if root.ID != "docs/product-docs" || root.Description != "Start here" {
		t.Errorf("root page = %+v", root.SourcePage)
	}

	guides, _ := src.Page([]string{"guides"})
	if guides.Title != "Guides" {
		t.Errorf("title fallback = %q, want first heading", guides.Title)
	}

	setup, ok := src.Page([]string{"guides", "setup"})
	if !ok {
		t.Fatal("setup page not found")
	}
	if setup.Tag != "ce" || setup.Path != "guides/setup.mdx" {
		t.Errorf("setup page = %+v", setup)
	}
	if len(setup.Structured.Headings) != 1 || setup.Structured.Headings[0].ID != "install" {
		t.Errorf("setup headings = %+v", setup.Structured.Headings)
	}
}

func TestLoadDir_JSONPage(t *testing.T) {
	src, err := content.LoadDir(mustSub(t, testContent(), "scripts"), content.Section{Name: "scripts", Prefix: "/docs/scripts"})
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	page, ok := src.Page([]string{"lua"})
	if !ok {
		t.Fatal("lua page not found")
	}
	if page.Title != "Lua scripting" || page.Tag != "ee" || page.URL != "/docs/scripts/lua" {
		t.Errorf("lua page = %+v", page.SourcePage)
	}
	if got := len(page.Structured.Contents); got != 2 {
		t.Errorf("lua contents = %d, want 2", got)
	}
}

func TestLoadDir_InvalidJSONPage(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "missing title", data: `{"structured": {"headings": [], "contents": []}}`},
		{name: "unknown field", data: `{"title": "x", "body": "y", "structured": {"headings": [], "contents": []}}`},
		{name: "heading id with anchor", data: `{"title": "x", "structured": {"headings": [{"id": "#a", "content": "A"}], "contents": []}}`},
		{name: "not json", data: `{title`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{"bad.json": {Data: []byte(tt.data)}}
			_, err := content.LoadDir(fsys, content.Section{Name: "scripts", Prefix: "/docs/scripts"})
			if err == nil {
				t.Fatal("LoadDir() should reject the page")
			}
		})
	}

	fsys := fstest.MapFS{"bad.json": {Data: []byte(tests[0].data)}}
	_, err := content.LoadDir(fsys, content.Section{Name: "scripts", Prefix: "/docs/scripts"})
	var schemaErr *content.SchemaError
	if !errors.As(err, &schemaErr) || len(schemaErr.Violations) == 0 {
		t.Errorf("LoadDir() error = %v, want SchemaError with violations", err)
	}
}

func TestLoadDir_DuplicateURL(t *testing.T) {
	fsys := fstest.MapFS{
		"setup.md":       {Data: []byte("# A")},
		"setup/index.md": {Data: []byte("# B")},
	}
	if _, err := content.LoadDir(fsys, content.Section{Name: "docs", Prefix: "/docs"}); err == nil {
		t.Error("LoadDir() should reject two files mapping to one URL")
	}
}

func TestRegistry(t *testing.T) {
	reg, err := content.LoadRegistry(testContent(), content.DefaultSections)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}

	tests := []struct {
		link   string
		wantID string
	}{
		{link: "/docs/product-docs/guides/setup", wantID: "docs/product-docs/guides/setup"},
		{link: "/docs/product-docs/guides/setup#install", wantID: "docs/product-docs/guides/setup"},
		{link: "/docs/product-docs/guides/", wantID: "docs/product-docs/guides"},
		{link: "https://example.com/docs/scripts/lua?x=1", wantID: "docs/scripts/lua"},
		{link: "/blog/2024/release", wantID: "blog/2024/release"},
		{link: "/docs/product-docs", wantID: "docs/product-docs"},
		{link: "/docs/unknown/page"},
		{link: "/docs/product-docsx"},
		{link: "/changelog"},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			page, ok := reg.Lookup(tt.link)
			if tt.wantID == "" {
				if ok {
					t.Errorf("Lookup(%q) = %s, want not found", tt.link, page.ID)
				}
				return
			}
			if !ok {
				t.Fatalf("Lookup(%q) not found", tt.link)
			}
			if page.ID != tt.wantID {
				t.Errorf("Lookup(%q) = %s, want %s", tt.link, page.ID, tt.wantID)
			}
		})
	}

	if got := len(reg.SourcePages()); got != 5 {
		t.Errorf("SourcePages() = %d, want 5", got)
	}
}

func TestRegistry_LongestPrefixWins(t *testing.T) {
	outer, _ := content.LoadDir(fstest.MapFS{"scripts.md": {Data: []byte("# Outer")}}, content.Section{Name: "docs", Prefix: "/docs"})
	inner, _ := content.LoadDir(fstest.MapFS{"index.md": {Data: []byte("# Inner")}}, content.Section{Name: "scripts", Prefix: "/docs/scripts"})

	reg := content.NewRegistry(outer, inner)
	page, ok := reg.Lookup("/docs/scripts")
	if !ok || page.Title != "Inner" {
		t.Errorf("Lookup(/docs/scripts) = %v, %v; want Inner", page, ok)
	}
}

func TestRegistry_Text(t *testing.T) {
	reg, err := content.LoadRegistry(testContent(), content.DefaultSections)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}

	page, _ := reg.Lookup("/docs/scripts/lua")
	text, err := reg.Text(context.Background(), page)
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	want := "# Lua scripting\n\nExtend with Lua\n\n## Hooks\n\nRun code before the backend call."
	if text != want {
		t.Errorf("Text() = %q, want %q", text, want)
	}

	setup, _ := reg.Lookup("/docs/product-docs/guides/setup")
	text, _ = reg.Text(context.Background(), setup)
	if strings.Contains(text, "](") {
		t.Errorf("Text() kept link syntax: %q", text)
	}

	if _, err := reg.Text(context.Background(), nil); !errors.Is(err, content.ErrPageNotFound) {
		t.Errorf("Text(nil) error = %v, want ErrPageNotFound", err)
	}
}
