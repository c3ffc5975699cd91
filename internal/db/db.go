// Package db opens the SQLite database backing the delivery journal.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBPair is a read-only pool plus a single-connection writer over one WAL
// database file.
type DBPair struct {
	reader *sql.DB
	writer *sql.DB
}

func (p *DBPair) Reader() *sql.DB { return p.reader }

func (p *DBPair) Writer() *sql.DB { return p.writer }

// Ping checks both pools.
func (p *DBPair) Ping() error {
	if err := p.writer.Ping(); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if err := p.reader.Ping(); err != nil {
		return fmt.Errorf("ping reader: %w", err)
	}
	return nil
}

// Close closes both pools.
func (p *DBPair) Close() error {
	return errors.Join(
		wrapClose("reader", p.reader.Close()),
		wrapClose("writer", p.writer.Close()),
	)
}

func wrapClose(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("close %s: %w", name, err)
}

// pool describes one side of the pair.
type pool struct {
	mode    string
	maxOpen int
	maxIdle int
}

var (
	writerPool = pool{mode: "rwc", maxOpen: 1, maxIdle: 1}
	readerPool = pool{mode: "ro", maxOpen: 4, maxIdle: 2}
)

func openPool(dbPath string, p pool) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_busy_timeout=5000&cache=shared&mode=%s", dbPath, p.mode)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s pool: %w", p.mode, err)
	}
	conn.SetMaxOpenConns(p.maxOpen)
	conn.SetMaxIdleConns(p.maxIdle)
	conn.SetConnMaxLifetime(time.Hour)
	return conn, nil
}

// Init opens dbPath, creating its directory, and brings the journal schema
// up to date. The writer is prepared first because a read-only connection
// cannot open a file that does not exist yet.
func Init(dbPath string) (*DBPair, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	writer, err := openPool(dbPath, writerPool)
	if err != nil {
		return nil, err
	}
	if err := prepare(writer); err != nil {
		_ = writer.Close()
		return nil, err
	}

	reader, err := openPool(dbPath, readerPool)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}
	return &DBPair{reader: reader, writer: writer}, nil
}

func prepare(writer *sql.DB) error {
	if _, err := writer.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL: %w", err)
	}
	if _, err := writer.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return runMigrations(writer)
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// additiveColumns lists columns added after the first journal release.
var additiveColumns = []struct {
	table, column, ddl string
}{
	{"audit_events", "request_id", "ALTER TABLE audit_events ADD COLUMN request_id TEXT"},
	{"audit_events", "duration_ms", "ALTER TABLE audit_events ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0"},
}

func runMigrations(db *sql.DB) error {
	cache := map[string]map[string]bool{}
	for _, m := range additiveColumns {
		columns, ok := cache[m.table]
		if !ok {
			var err error
			columns, err = tableColumns(db, m.table)
			if err != nil {
				return err
			}
			cache[m.table] = columns
		}
		if columns[m.column] {
			continue
		}
		if _, err := db.Exec(m.ddl); err != nil {
			return fmt.Errorf("add %s.%s: %w", m.table, m.column, err)
		}
		columns[m.column] = true
	}
	return nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, colType    string
			defaultVal       sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		columns[name] = true
	}
	return columns, rows.Err()
}
