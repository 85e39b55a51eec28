package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/simstore/internal/models"
)

// maxInParams keeps IN (...) lists below SQLite's host parameter limit.
const maxInParams = 500

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// DB is a shared SQLite database holding one table per collection.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a SQLite database at dbPath in WAL mode.
// Parent directories are created if they do not exist.
func OpenDB(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// TableOptions configures a collection table.
type TableOptions struct {
	// UniqueCategory adds a unique index on category (guide keys).
	UniqueCategory bool
}

// SQLiteStore is a RecordStore backed by one table of a shared DB.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// Table returns the record store for collection name, creating its table if needed.
func (d *DB) Table(name string, opts TableOptions) (*SQLiteStore, error) {
	if !tableNamePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	table := "records_" + name
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id INTEGER PRIMARY KEY,
		category TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		answer TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_category ON %[1]s(category);
	`, table)
	if opts.UniqueCategory {
		schema += fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS uq_%[1]s_category ON %[1]s(category);\n", table)
	}
	if _, err := d.db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize table %s: %w", table, err)
	}
	return &SQLiteStore{db: d.db, table: table}, nil
}

const recordColumns = `id, category, title, body, answer, metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var metadataJSON sql.NullString
	if err := row.Scan(&doc.ID, &doc.Category, &doc.Title, &doc.Text, &doc.Answer, &metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &doc, nil
}

func marshalMetadata(m map[string]interface{}) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// Get returns a record by id or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM `+s.table+` WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetMany resolves ids with one IN query per chunk of maxInParams ids.
func (s *SQLiteStore) GetMany(ctx context.Context, ids []int64) (map[int64]*models.Document, error) {
	out := make(map[int64]*models.Document, len(ids))
	for start := 0; start < len(ids); start += maxInParams {
		chunk := ids[start:min(start+maxInParams, len(ids))]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+recordColumns+` FROM `+s.table+` WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			doc, err := scanDocument(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[doc.ID] = doc
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Upsert writes docs in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, docs []*models.Document) (inserted, updated int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, doc := range docs {
		metadata, err := marshalMetadata(doc.Metadata)
		if err != nil {
			return 0, 0, err
		}
		var createdAt time.Time
		err = tx.QueryRowContext(ctx, `SELECT created_at FROM `+s.table+` WHERE id = ?`, doc.ID).Scan(&createdAt)
		switch {
		case err == sql.ErrNoRows:
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO `+s.table+` (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				doc.ID, doc.Category, doc.Title, doc.Text, doc.Answer, metadata, now, now,
			); err != nil {
				return 0, 0, fmt.Errorf("insert record %d: %w", doc.ID, constraintError(err))
			}
			doc.CreatedAt = now
			inserted++
		case err != nil:
			return 0, 0, err
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE `+s.table+` SET category = ?, title = ?, body = ?, answer = ?, metadata = ?, updated_at = ?
				 WHERE id = ?`,
				doc.Category, doc.Title, doc.Text, doc.Answer, metadata, now, doc.ID,
			); err != nil {
				return 0, 0, fmt.Errorf("update record %d: %w", doc.ID, constraintError(err))
			}
			doc.CreatedAt = createdAt
			updated++
		}
		doc.UpdatedAt = now
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

// constraintError maps unique index violations to ErrDuplicateKey.
func constraintError(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

// Delete removes a record and reports whether it existed.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// All returns every record ordered by id.
func (s *SQLiteStore) All(ctx context.Context) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM `+s.table+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.table).Scan(&count)
	return count, err
}

// Categories returns distinct non-empty categories.
func (s *SQLiteStore) Categories(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM `+s.table+` WHERE category != '' ORDER BY category LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Truncate deletes every record.
func (s *SQLiteStore) Truncate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table)
	return err
}

// Close is a no-op; the shared DB owns the connection.
func (s *SQLiteStore) Close() error {
	return nil
}
