package indexing

// Indexing constants
const (
	// DefaultBatchSize is the number of records sent per upsert call
	DefaultBatchSize = 100

	// IndexSchemaVersion increments when the record shape or schema changes
	// v1: page/heading/text records with section fields
	IndexSchemaVersion = 1
)

// excludedBlocks are structural leftovers that carry no searchable text
var excludedBlocks = map[string]bool{
	"img":    true,
	"iframe": true,
	"center": true,
}
