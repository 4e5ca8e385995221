package indexing

// Field describes one field of a collection schema
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
	Facet    bool   `json:"facet,omitempty"`
	// Exact fields are matched verbatim (keyword), never tokenized
	Exact bool `json:"exact,omitempty"`
}

// Schema is the schema of a search collection
type Schema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field returns the named field
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// DocsSchema returns the fixed schema every docs collection is created with
func DocsSchema(name string) Schema {
	return Schema{
		Name: name,
		Fields: []Field{
			{Name: "title", Type: "string"},
			{Name: "description", Type: "string", Optional: true},
			{Name: "url", Type: "string", Exact: true},
			{Name: "page_id", Type: "string", Facet: false, Exact: true},
			{Name: "tag", Type: "string", Optional: true, Facet: true, Exact: true},
			{Name: "section", Type: "string", Optional: true},
			{Name: "section_id", Type: "string", Optional: true, Exact: true},
			{Name: "content", Type: "string"},
		},
	}
}
