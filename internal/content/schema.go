package content

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/krakend/docsite-search/internal/indexing"
)

//go:embed schema/page.schema.json
var pageSchemaJSON []byte

const pageSchemaURL = "https://docsite/schema/page.json"

var (
	pageSchemaOnce sync.Once
	pageSchema     *jsonschema.Schema
	pageSchemaErr  error
)

func compiledPageSchema() (*jsonschema.Schema, error) {
	pageSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(pageSchemaJSON))
		if err != nil {
			pageSchemaErr = fmt.Errorf("page schema is invalid: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(pageSchemaURL, doc); err != nil {
			pageSchemaErr = fmt.Errorf("failed to add page schema: %w", err)
			return
		}
		pageSchema, pageSchemaErr = compiler.Compile(pageSchemaURL)
	})
	return pageSchema, pageSchemaErr
}

// JSONPage is the on-disk form of a structured page file
type JSONPage struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Tag         string                  `json:"tag"`
	Structured  indexing.StructuredData `json:"structured"`
}

// SchemaError lists the violations of a page file
type SchemaError struct {
	File       string
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: schema validation failed: %s", e.File, strings.Join(e.Violations, "; "))
}

func violations(err *jsonschema.ValidationError) []string {
	path := "$"
	if len(err.InstanceLocation) > 0 {
		path = "$." + strings.Join(err.InstanceLocation, ".")
	}
	if len(err.Causes) == 0 {
		return []string{path + ": " + err.Error()}
	}
	var out []string
	for _, cause := range err.Causes {
		out = append(out, violations(cause)...)
	}
	return out
}

// ParseJSONPage validates a page file against the embedded schema and decodes it
func ParseJSONPage(file string, data []byte) (*JSONPage, error) {
	schema, err := compiledPageSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid JSON: %w", file, err)
	}
	if err := schema.Validate(doc); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			return nil, &SchemaError{File: file, Violations: violations(verr)}
		}
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	var page JSONPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return &page, nil
}
