// Package store is a small document store on top of SQLite. Documents are JSON
// objects grouped in named collections and matched by field equality.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// IDField is the document key that carries the document id.
const IDField = "_id"

// ErrNotFound is returned when no document matches a filter.
var ErrNotFound = errors.New("document not found")

// Filter matches documents whose top-level fields equal the given values.
// An empty filter matches every document in the collection.
type Filter map[string]any

// Store wraps the database connection.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps writers serialized inside database/sql.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			body       TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection returns a handle on the named collection. Collections need no
// creation step.
func (s *Store) Collection(name string) *Collection {
	return &Collection{db: s.db, name: name}
}

// Collection is a named set of documents.
type Collection struct {
	db   *sql.DB
	name string
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// FindOne decodes the first document matching filter into out.
func (c *Collection) FindOne(ctx context.Context, filter Filter, out any) error {
	where, args := c.where(filter)
	row := c.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE "+where+" ORDER BY rowid LIMIT 1", args...)

	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("finding document in %s: %w", c.name, err)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("decoding document in %s: %w", c.name, err)
	}
	return nil
}

// Find returns every document matching filter in insertion order.
func (c *Collection) Find(ctx context.Context, filter Filter) ([]json.RawMessage, error) {
	where, args := c.where(filter)
	rows, err := c.db.QueryContext(ctx, "SELECT body FROM documents WHERE "+where+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", c.name, err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", c.name, err)
		}
		docs = append(docs, json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", c.name, err)
	}
	return docs, nil
}

// InsertOne stores doc and returns its id. A document without an _id field
// gets a random one.
func (c *Collection) InsertOne(ctx context.Context, doc any) (string, error) {
	id, body, err := encode(doc, "")
	if err != nil {
		return "", err
	}
	if _, err := c.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)",
		c.name, id, body,
	); err != nil {
		return "", fmt.Errorf("inserting into %s: %w", c.name, err)
	}
	return id, nil
}

// ReplaceOne replaces the first document matching filter with doc, keeping
// its id. When nothing matches and upsert is set, doc is inserted instead;
// otherwise ErrNotFound is returned.
func (c *Collection) ReplaceOne(ctx context.Context, filter Filter, doc any, upsert bool) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning replace in %s: %w", c.name, err)
	}
	defer tx.Rollback()

	where, args := c.where(filter)
	var existing string
	err = tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE "+where+" ORDER BY rowid LIMIT 1", args...).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !upsert {
			return ErrNotFound
		}
		id, body, err := encode(doc, "")
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)",
			c.name, id, body,
		); err != nil {
			return fmt.Errorf("upserting into %s: %w", c.name, err)
		}
	case err != nil:
		return fmt.Errorf("finding document in %s: %w", c.name, err)
	default:
		_, body, err := encode(doc, existing)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE documents SET body = ? WHERE collection = ? AND id = ?",
			body, c.name, existing,
		); err != nil {
			return fmt.Errorf("replacing in %s: %w", c.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing replace in %s: %w", c.name, err)
	}
	return nil
}

// where builds the SQL predicate for filter. Field names are bound as JSON
// paths so they never reach the SQL text.
func (c *Collection) where(filter Filter) (string, []any) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := []string{"collection = ?"}
	args := []any{c.name}
	for _, k := range keys {
		clauses = append(clauses, "json_extract(body, ?) = ?")
		args = append(args, jsonPath(k), sqlValue(filter[k]))
	}
	return strings.Join(clauses, " AND "), args
}

func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

// sqlValue maps a filter value onto what json_extract yields for it.
func sqlValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	case fmt.Stringer:
		return val.String()
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}

// encode marshals doc as a JSON object and pins its _id. When forceID is set
// it wins over whatever the document carries.
func encode(doc any, forceID string) (string, string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", "", fmt.Errorf("encoding document: %w", err)
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("null document")
		}
		return "", "", fmt.Errorf("document must be a JSON object: %w", err)
	}

	id := forceID
	if id == "" {
		if existing, ok := fields[IDField].(string); ok && existing != "" {
			id = existing
		} else {
			id = uuid.NewString()
		}
	}
	fields[IDField] = id

	body, err := json.Marshal(fields)
	if err != nil {
		return "", "", fmt.Errorf("encoding document: %w", err)
	}
	return id, string(body), nil
}
