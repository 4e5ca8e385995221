package content_test

import (
	"reflect"
	"testing"

	"github.com/krakend/docsite-search/internal/content"
	"github.com/krakend/docsite-search/internal/indexing"
)

func TestParseFrontMatter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantFM   content.FrontMatter
		wantBody string
		wantErr  bool
	}{
		{
			name:     "full front matter",
			input:    "---\ntitle: Rate limiting\ndescription: Limit requests\ntag: ee\n---\n# Body\n",
			wantFM:   content.FrontMatter{Title: "Rate limiting", Description: "Limit requests", Tag: "ee"},
			wantBody: "# Body\n",
		},
		{
			name:     "no front matter",
			input:    "# Just markdown",
			wantBody: "# Just markdown",
		},
		{
			name:     "empty front matter",
			input:    "---\n---\nBody",
			wantBody: "Body",
		},
		{
			name:    "unterminated",
			input:   "---\ntitle: x\n",
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			input:   "---\ntitle: [x\n---\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, err := content.ParseFrontMatter([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFrontMatter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if fm != tt.wantFM {
				t.Errorf("ParseFrontMatter() front matter = %+v, want %+v", fm, tt.wantFM)
			}
			if body != tt.wantBody {
				t.Errorf("ParseFrontMatter() body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestStructure(t *testing.T) {
	markdown := `import { Callout } from "components"

Intro paragraph with a [link](/docs/x).

## Setup

Run the installer.
It takes a minute.

<img src="/img/setup.png" alt="setup" />

` + "```bash\nmake install\n\nmake test\n```" + `

## Setup

<center><iframe src="https://video"></iframe></center>

<Callout>Keep your keys safe</Callout>

### ` + "`config` file" + `

Done.
`

	got := content.Structure(markdown)

	wantHeadings := []indexing.Heading{
		{ID: "setup", Content: "Setup"},
		{ID: "setup-1", Content: "Setup"},
		{ID: "config-file", Content: "config file"},
	}
	if !reflect.DeepEqual(got.Headings, wantHeadings) {
		t.Errorf("Structure() headings = %+v, want %+v", got.Headings, wantHeadings)
	}

	wantContents := []indexing.Block{
		{Content: "Intro paragraph with a link."},
		{Content: "Setup", Heading: "setup"},
		{Content: "Run the installer.\nIt takes a minute.", Heading: "setup"},
		{Content: "img", Heading: "setup"},
		{Content: "make install\n\nmake test", Heading: "setup"},
		{Content: "Setup", Heading: "setup-1"},
		{Content: "center", Heading: "setup-1"},
		{Content: "Keep your keys safe", Heading: "setup-1"},
		{Content: "config file", Heading: "config-file"},
		{Content: "Done.", Heading: "config-file"},
	}
	if !reflect.DeepEqual(got.Contents, wantContents) {
		t.Errorf("Structure() contents =\n%+v\nwant\n%+v", got.Contents, wantContents)
	}
}

func TestStructure_FlattensCleanly(t *testing.T) {
	structured := content.Structure("Intro.\n\n## Setup\n\n<img src=\"a.png\">\n\nRun it.\n")
	records, err := indexing.FlattenPage(indexing.SourcePage{
		ID: "docs/p", Title: "P", URL: "/docs/p", Structured: &structured,
	})
	if err != nil {
		t.Fatalf("FlattenPage() error = %v", err)
	}

	for _, r := range records {
		if r.Content == "img" {
			t.Errorf("image placeholder indexed: %+v", r)
		}
	}
	if len(records) != 3 {
		t.Errorf("FlattenPage() = %d records, want 3 (intro, heading marker, body): %+v", len(records), records)
	}
}

func TestStructure_Empty(t *testing.T) {
	got := content.Structure("")
	if len(got.Headings) != 0 || len(got.Contents) != 0 {
		t.Errorf("Structure(\"\") = %+v, want empty", got)
	}
	if got.Headings == nil || got.Contents == nil {
		t.Error("Structure(\"\") should return empty slices, not nil")
	}
}

func TestStructure_HeadingWithoutAnchorText(t *testing.T) {
	got := content.Structure("## ???\n\nFirst.\n\n## ???\n\nSecond.\n")

	wantHeadings := []indexing.Heading{
		{ID: "section", Content: "???"},
		{ID: "section-1", Content: "???"},
	}
	if !reflect.DeepEqual(got.Headings, wantHeadings) {
		t.Fatalf("Structure() headings = %+v, want %+v", got.Headings, wantHeadings)
	}
	for _, block := range got.Contents {
		if _, ok := got.Heading(block.Heading); !ok {
			t.Errorf("block %q has unresolvable heading %q", block.Content, block.Heading)
		}
	}
}
