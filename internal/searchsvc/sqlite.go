package searchsvc

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/krakend/docsite-search/internal/indexing"
)

const sqliteFile = "search.db"

// SQLite stores collections as tables backed by FTS5 external-content tables
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the search database in dataDir
func NewSQLite(dataDir string) (*SQLite, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("sqlite data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dataDir, sqliteFile))
	if err != nil {
		return nil, fmt.Errorf("open search db: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &SQLite{db: db}, nil
}

// recordColumns are the stored columns, in insert order
var recordColumns = []string{"id", "title", "description", "url", "page_id", "tag", "section", "section_id", "content"}

func recordValues(rec indexing.IndexRecord) []any {
	values := make([]any, 0, len(recordColumns))
	for _, col := range recordColumns {
		values = append(values, fieldValue(rec, col))
	}
	return values
}

// ftsColumns returns the tokenized (non-exact) fields of schema
func ftsColumns(schema indexing.Schema) []string {
	var cols []string
	for _, f := range schema.Fields {
		if !f.Exact && !f.Facet {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

func prefixed(prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}

// createSchemaSQL builds the table, FTS table and sync triggers for schema.
// Collection names are validated, so quoting them is enough.
func createSchemaSQL(schema indexing.Schema) string {
	name := schema.Name
	fts := ftsColumns(schema)

	var b strings.Builder
	fmt.Fprintf(&b, `CREATE TABLE "%s" (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL,
	page_id TEXT NOT NULL,
	tag TEXT NOT NULL DEFAULT '',
	section TEXT NOT NULL DEFAULT '',
	section_id TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL
);
CREATE INDEX "%s_page_id" ON "%s" (page_id);
CREATE INDEX "%s_tag" ON "%s" (tag);
`, name, name, name, name, name)

	fmt.Fprintf(&b, `CREATE VIRTUAL TABLE "%s_fts" USING fts5(%s, content='%s', content_rowid='rowid');
`, name, strings.Join(fts, ", "), name)

	cols := strings.Join(fts, ", ")
	fmt.Fprintf(&b, `CREATE TRIGGER "%s_ai" AFTER INSERT ON "%s" BEGIN
	INSERT INTO "%s_fts"(rowid, %s) VALUES (new.rowid, %s);
END;
`, name, name, name, cols, prefixed("new.", fts))
	fmt.Fprintf(&b, `CREATE TRIGGER "%s_ad" AFTER DELETE ON "%s" BEGIN
	INSERT INTO "%s_fts"("%s_fts", rowid, %s) VALUES ('delete', old.rowid, %s);
END;
`, name, name, name, name, cols, prefixed("old.", fts))
	fmt.Fprintf(&b, `CREATE TRIGGER "%s_au" AFTER UPDATE ON "%s" BEGIN
	INSERT INTO "%s_fts"("%s_fts", rowid, %s) VALUES ('delete', old.rowid, %s);
	INSERT INTO "%s_fts"(rowid, %s) VALUES (new.rowid, %s);
END;
`, name, name, name, name, cols, prefixed("old.", fts), name, cols, prefixed("new.", fts))

	return b.String()
}

func (s *SQLite) exists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup collection %s: %w", name, err)
	}
	return n > 0, nil
}

// CreateCollection creates the collection tables
func (s *SQLite) CreateCollection(ctx context.Context, schema indexing.Schema) error {
	if err := validateCollection(schema.Name); err != nil {
		return err
	}
	ok, err := s.exists(ctx, schema.Name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("create %s: %w", schema.Name, ErrCollectionExists)
	}
	if _, err := s.db.ExecContext(ctx, createSchemaSQL(schema)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// DeleteCollection drops the collection tables and triggers
func (s *SQLite) DeleteCollection(ctx context.Context, name string) error {
	if err := validateCollection(name); err != nil {
		return err
	}
	ok, err := s.exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete %s: %w", name, ErrCollectionNotFound)
	}
	drop := fmt.Sprintf(`
DROP TRIGGER IF EXISTS "%[1]s_au";
DROP TRIGGER IF EXISTS "%[1]s_ad";
DROP TRIGGER IF EXISTS "%[1]s_ai";
DROP TABLE IF EXISTS "%[1]s_fts";
DROP TABLE IF EXISTS "%[1]s";
`, name)
	if _, err := s.db.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes records in one transaction
func (s *SQLite) Upsert(ctx context.Context, collection string, records []indexing.IndexRecord) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	ok, err := s.exists(ctx, collection)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("upsert %s: %w", collection, ErrCollectionNotFound)
	}

	updates := make([]string, 0, len(recordColumns)-1)
	for _, col := range recordColumns[1:] {
		updates = append(updates, col+" = excluded."+col)
	}
	stmtSQL := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (?%s) ON CONFLICT(id) DO UPDATE SET %s`,
		collection,
		strings.Join(recordColumns, ", "),
		strings.Repeat(", ?", len(recordColumns)-1),
		strings.Join(updates, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, recordValues(rec)...); err != nil {
			return fmt.Errorf("upsert record %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// matchExpression turns free text into an FTS5 expression restricted to
// columns. Terms are quoted prefix phrases joined with OR.
func matchExpression(text string, columns []string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(text) {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r > 127,
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	colspec := ""
	if len(columns) > 0 {
		colspec = "{" + strings.Join(columns, " ") + "} : "
	}

	var terms []string
	for _, t := range strings.Fields(b.String()) {
		switch strings.ToUpper(t) {
		case "AND", "OR", "NOT", "NEAR":
			continue
		}
		terms = append(terms, colspec+`"`+t+`"*`)
	}
	return strings.Join(terms, " OR ")
}

// Search runs q with bm25 ranking (the FTS5 rank); grouping uses a window over page groups
func (s *SQLite) Search(ctx context.Context, collection string, q Query) (*Result, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	ok, err := s.exists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("search %s: %w", collection, ErrCollectionNotFound)
	}

	var (
		from  string
		score string
		args  []any
		where []string
	)
	matchAll := q.Text == "" || q.Text == MatchAll
	if matchAll {
		from = fmt.Sprintf(`"%s" m`, collection)
		score = "0.0"
	} else {
		expr := matchExpression(q.Text, q.QueryBy)
		if expr == "" {
			return &Result{Hits: []Hit{}}, nil
		}
		from = fmt.Sprintf(`"%[1]s_fts" f JOIN "%[1]s" m ON m.rowid = f.rowid`, collection)
		score = "-f.rank"
		where = append(where, fmt.Sprintf(`f."%s_fts" MATCH ?`, collection))
		args = append(args, expr)
	}

	names := make([]string, 0, len(q.Filters))
	for name := range q.Filters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		where = append(where, "m."+name+" = ?")
		args = append(args, q.Filters[name])
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	perPage := perPageOrDefault(q)
	cols := prefixed("m.", recordColumns)
	// FTS5 ranking is only available while scanning the FTS table, so the
	// match is materialized before any window function runs over it
	hits := fmt.Sprintf(`WITH matched AS MATERIALIZED (SELECT %s, %s AS score FROM %s%s),
hits AS (SELECT *, COUNT(*) OVER () AS total FROM matched)`, cols, score, from, whereSQL)

	var query string
	if q.GroupBy != "" {
		limit := q.GroupLimit
		if limit <= 0 {
			limit = 1
		}
		// rn ranks hits inside a group; grp_rank orders groups by their best hit
		query = fmt.Sprintf(`%s,
ranked AS (
	SELECT *, ROW_NUMBER() OVER (PARTITION BY %[2]s ORDER BY score DESC, id) AS rn FROM hits
),
top_groups AS (
	SELECT %[2]s AS grp, ROW_NUMBER() OVER (ORDER BY score DESC, id) AS grp_rank FROM ranked WHERE rn = 1
)
SELECT ranked.* FROM ranked JOIN top_groups ON top_groups.grp = ranked.%[2]s
WHERE ranked.rn <= ? AND top_groups.grp_rank <= ?
ORDER BY top_groups.grp_rank, ranked.rn`, hits, q.GroupBy)
		args = append(args, limit, perPage)
	} else {
		query = hits + `
SELECT * FROM hits ORDER BY score DESC, id LIMIT ?`
		args = append(args, perPage)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &Result{Hits: make([]Hit, 0)}
	for rows.Next() {
		var (
			rec   indexing.IndexRecord
			hit   Hit
			total int
			rn    int
		)
		dest := []any{&rec.ID, &rec.Title, &rec.Description, &rec.URL, &rec.PageID,
			&rec.Tag, &rec.Section, &rec.SectionID, &rec.Content, &hit.Score, &total}
		if q.GroupBy != "" {
			dest = append(dest, &rn)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		hit.IndexRecord = rec
		result.Found = total
		result.Hits = append(result.Hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return result, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}
