package indexing

// Heading is a heading declared by a page's structured content
type Heading struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Block is one content block. Heading references Heading.ID and may be empty
type Block struct {
	Content string `json:"content"`
	Heading string `json:"heading,omitempty"`
}

// StructuredData is the structured form of a page used for indexing
type StructuredData struct {
	Headings []Heading `json:"headings"`
	Contents []Block   `json:"contents"`
}

// Heading resolves a heading reference. Broken references report false.
func (s *StructuredData) Heading(id string) (Heading, bool) {
	if s == nil || id == "" {
		return Heading{}, false
	}
	for _, h := range s.Headings {
		if h.ID == id {
			return h, true
		}
	}
	return Heading{}, false
}

// SourcePage is a logical documentation or blog page ready to be indexed
type SourcePage struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	Description string          `json:"description,omitempty"`
	Tag         string          `json:"tag,omitempty"`
	Structured  *StructuredData `json:"structured"`
}

// IndexRecord is one independently rankable fragment of a page in the search index
type IndexRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`                 // Page title, repeated on every fragment
	Description string `json:"description,omitempty"` // Only set on the description record
	URL         string `json:"url"`                   // Bare page URL, no anchor
	PageID      string `json:"page_id"`
	Tag         string `json:"tag,omitempty"`
	Section     string `json:"section,omitempty"`    // Heading text the fragment belongs to
	SectionID   string `json:"section_id,omitempty"` // Heading id, used as URL anchor
	Content     string `json:"content"`
}
