package indexing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPage is returned for pages missing structured content, id, url or title
var ErrInvalidPage = errors.New("invalid page")

// flattenState is the accumulator threaded through one FlattenPage call
type flattenState struct {
	page            *SourcePage
	counter         int
	scannedHeadings map[string]bool
	records         []IndexRecord
}

func (s *flattenState) emit(content, section, sectionID string) *IndexRecord {
	s.records = append(s.records, IndexRecord{
		ID:        fmt.Sprintf("%s-%d", s.page.ID, s.counter),
		Title:     s.page.Title,
		URL:       s.page.URL,
		PageID:    s.page.ID,
		Tag:       s.page.Tag,
		Section:   section,
		SectionID: sectionID,
		Content:   content,
	})
	s.counter++
	return &s.records[len(s.records)-1]
}

// FlattenPage converts a page into index records: one for the description,
// one marker per distinct heading and one per content block with text.
func FlattenPage(page SourcePage) ([]IndexRecord, error) {
	if page.Structured == nil {
		return nil, fmt.Errorf("%w %q: missing structured content", ErrInvalidPage, page.ID)
	}
	if page.ID == "" || page.URL == "" || page.Title == "" {
		return nil, fmt.Errorf("%w %q: id, url and title are required", ErrInvalidPage, page.ID)
	}

	state := &flattenState{
		page:            &page,
		scannedHeadings: make(map[string]bool),
	}

	if page.Description != "" {
		rec := state.emit(page.Description, "", "")
		rec.Description = page.Description
	}

	for _, block := range page.Structured.Contents {
		heading, hasHeading := page.Structured.Heading(block.Heading)

		if strings.TrimSpace(block.Content) == "" || excludedBlocks[block.Content] {
			continue
		}

		if !hasHeading {
			state.emit(block.Content, "", "")
			continue
		}

		// A block repeating its heading text is covered by the heading marker
		if block.Content != heading.Content {
			state.emit(block.Content, heading.Content, heading.ID)
		}

		if !state.scannedHeadings[heading.ID] {
			state.emit(heading.Content, heading.Content, heading.ID)
			state.scannedHeadings[heading.ID] = true
		}
	}

	return state.records, nil
}

// FlattenPages flattens every page in order
func FlattenPages(pages []SourcePage) ([]IndexRecord, error) {
	var records []IndexRecord
	for _, page := range pages {
		pageRecords, err := FlattenPage(page)
		if err != nil {
			return nil, err
		}
		records = append(records, pageRecords...)
	}
	return records, nil
}
