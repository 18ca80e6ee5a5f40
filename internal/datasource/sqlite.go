package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/dirtree/pkg/model"
)

// SQLiteReader provides read access to a tree database. The database holds
// one table:
//
//	CREATE TABLE entities (
//	    id        INTEGER PRIMARY KEY,
//	    parent_id INTEGER,
//	    kind      TEXT NOT NULL,
//	    title     TEXT NOT NULL DEFAULT '',
//	    children  TEXT,
//	    position  INTEGER NOT NULL DEFAULT 0
//	);
//
// children is a JSON array of ids; position orders siblings as fetched.
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a SQLite database for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000&_journal_mode=WAL", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		// Best effort; a read-only handle may refuse some pragmas.
		_, _ = db.Exec(pragma)
	}

	return &SQLiteReader{
		db:   db,
		path: source.Path,
	}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadEntities reads every row of the entities table in fetch order.
func (r *SQLiteReader) LoadEntities(ctx context.Context) ([]model.Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, parent_id, kind, title, children FROM entities ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		var (
			e        model.Entity
			parentID sql.NullInt64
			kind     string
			title    sql.NullString
			children sql.NullString
		)
		if err := rows.Scan(&e.ID, &parentID, &kind, &title, &children); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		if parentID.Valid {
			e.ParentID = model.ParentOf(int(parentID.Int64))
		}
		e.Kind = model.Kind(kind)
		e.Title = title.String
		if children.Valid {
			ids, err := parseChildren(children.String)
			if err != nil {
				return nil, fmt.Errorf("entity %d: %w", e.ID, err)
			}
			e.Children = ids
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	return entities, nil
}

// CountEntities returns the row count of the entities table.
func (r *SQLiteReader) CountEntities(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// parseChildren decodes the children column.
func parseChildren(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" || s == "[]" {
		return nil, nil
	}
	var ids []int
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("invalid children %q: %w", s, err)
	}
	return ids, nil
}
