// Package sqlcheck validates generated SQL by executing it against a scratch
// table whose columns mirror a field catalog.
//
// Supports SQLite (in-memory or file) and PostgreSQL via sqlx. Static
// housekeeping statements live in embedded .sql files managed by dotsql; the
// scratch table DDL is built dynamically from the catalog.
package sqlcheck

import (
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/qustavo/dotsql"

	"github.com/solatis/querykit/formatquery"
	"github.com/solatis/querykit/querytree"
)

const (
	maxOpenConns    = 4
	maxIdleConns    = 2
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
)

//go:embed queries/*.sql
var queriesFS embed.FS

// Open establishes a database connection from a URL and configures pooling.
// Supported URL schemes: sqlite://, postgres://
// SQLite URLs: sqlite://file.db, sqlite:///absolute/path, sqlite://:memory:
func Open(dbURL string) (*sqlx.DB, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}

	var driverName string
	var dataSource string

	switch u.Scheme {
	case "sqlite":
		driverName = "sqlite3"
		// sqlite://file.db uses host+path (relative), sqlite:///absolute/path
		// uses path-only. ":memory:" parses as an opaque value.
		switch {
		case u.Opaque != "":
			dataSource = u.Opaque
		case u.Host != "":
			dataSource = u.Host + u.Path
		default:
			dataSource = u.Path
		}
	case "postgres":
		driverName = "postgres"
		dataSource = dbURL
	default:
		return nil, fmt.Errorf("unsupported database scheme: %s (expected sqlite or postgres)", u.Scheme)
	}

	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Harness holds a connection and the named housekeeping statements.
type Harness struct {
	db  *sqlx.DB
	dot *dotsql.DotSql
}

// New loads the embedded .sql files and returns a harness over db.
func New(db *sqlx.DB) (*Harness, error) {
	var combinedSQL string

	err := fs.WalkDir(queriesFS, "queries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}
		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		combinedSQL += string(content) + "\n"
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load query files: %w", err)
	}

	dot, err := dotsql.LoadFromString(combinedSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}

	return &Harness{db: db, dot: dot}, nil
}

// columnType maps a catalog data type to a portable SQL column type.
func columnType(dataType string) string {
	switch dataType {
	case "number", "numeric":
		return "DOUBLE PRECISION"
	case "boolean":
		return "BOOLEAN"
	case "date":
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// Setup rebuilds the scratch table with one column per catalog field.
func (h *Harness) Setup(fields []querytree.Field) error {
	if len(fields) == 0 {
		return fmt.Errorf("sqlcheck: no fields to build scratch table from")
	}

	drop, err := h.dot.Raw("drop-scratch")
	if err != nil {
		return fmt.Errorf("query not found: drop-scratch")
	}
	if _, err := h.db.Exec(drop); err != nil {
		return fmt.Errorf("failed to drop scratch table: %w", err)
	}

	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, fmt.Sprintf("%q %s", f.Name, columnType(f.DataType)))
	}
	ddl := fmt.Sprintf("CREATE TABLE qk_scratch (%s)", strings.Join(cols, ", "))
	if _, err := h.db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create scratch table: %w", err)
	}
	return nil
}

// Check formats q as parameterized SQL and executes it as a WHERE clause
// against the scratch table. The row count comes back so callers can assert
// against seeded data; a database error means the generated SQL is invalid.
func (h *Harness) Check(q *querytree.RuleGroup, o *formatquery.Options) (int, error) {
	where, params := formatquery.Parameterized(q, o)

	base, err := h.dot.Raw("count-scratch")
	if err != nil {
		return 0, fmt.Errorf("query not found: count-scratch")
	}
	query := h.db.Rebind(base + " WHERE " + where)

	var count int
	if err := h.db.Get(&count, query, params...); err != nil {
		return 0, fmt.Errorf("generated SQL rejected: %w", err)
	}
	return count, nil
}

// Seed inserts one row per map of column values, for tests that assert on
// match counts rather than bare syntax validity.
func (h *Harness) Seed(rows []map[string]any) error {
	for _, row := range rows {
		cols := make([]string, 0, len(row))
		binds := make([]string, 0, len(row))
		args := make([]any, 0, len(row))
		for col, v := range row {
			cols = append(cols, fmt.Sprintf("%q", col))
			binds = append(binds, "?")
			args = append(args, v)
		}
		stmt := fmt.Sprintf("INSERT INTO qk_scratch (%s) VALUES (%s)",
			strings.Join(cols, ", "), strings.Join(binds, ", "))
		if _, err := h.db.Exec(h.db.Rebind(stmt), args...); err != nil {
			return fmt.Errorf("failed to seed scratch table: %w", err)
		}
	}
	return nil
}
