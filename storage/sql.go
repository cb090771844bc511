package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"pricewatch/models"
)

var tableNameRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// columns in canonical order, matching models.CanonicalHeader.
var sqlColumns = []string{
	"fecha_hora", "retailer", "modelo", "producto", "precio", "precio_descuento", "cantidad",
}

// SQLStore reads and appends raw observations in a PostgreSQL or SQLite table.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	table   string
}

// NewPostgresStore connects to PostgreSQL, retrying the initial ping while
// the server starts up.
func NewPostgresStore(dsn, table string) (*SQLStore, error) {
	if !tableNameRegexp.MatchString(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return &SQLStore{db: db, dialect: dialectPostgres, table: table}, nil
}

// NewSQLiteStore opens (or creates) the SQLite database at path.
func NewSQLiteStore(path, table string) (*SQLStore, error) {
	if !tableNameRegexp.MatchString(table) {
		return nil, fmt.Errorf("sqlite: invalid table name %q", table)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &SQLStore{db: db, dialect: dialectSQLite, table: table}, nil
}

// Migrate creates the observations table and its timestamp index.
func (s *SQLStore) Migrate(ctx context.Context) error {
	ddl := s.createTableDDL()
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%s: migrate: %w", s.name(), err)
	}
	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%[1]s_fecha_hora ON %[1]s(fecha_hora)", s.table)
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("%s: migrate index: %w", s.name(), err)
	}
	return nil
}

// createTableDDL returns the table definition. Timestamps are stored as
// naive wall-clock values, as the scraper records them, so reads do not
// depend on the database session time zone.
func (s *SQLStore) createTableDDL() string {
	var ddl string
	switch s.dialect {
	case dialectPostgres:
		ddl = `CREATE TABLE IF NOT EXISTS %[1]s (
			id               SERIAL PRIMARY KEY,
			fecha_hora       TIMESTAMP     NOT NULL,
			retailer         TEXT          NOT NULL,
			modelo           TEXT          NOT NULL,
			producto         TEXT          NOT NULL DEFAULT '',
			precio           NUMERIC(12,2) NOT NULL DEFAULT 0,
			precio_descuento NUMERIC(12,2) NOT NULL DEFAULT 0,
			cantidad         INTEGER       NOT NULL DEFAULT 1
		)`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS %[1]s (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			fecha_hora       TEXT    NOT NULL,
			retailer         TEXT    NOT NULL,
			modelo           TEXT    NOT NULL,
			producto         TEXT    NOT NULL DEFAULT '',
			precio           REAL    NOT NULL DEFAULT 0,
			precio_descuento REAL    NOT NULL DEFAULT 0,
			cantidad         INTEGER NOT NULL DEFAULT 1
		)`
	}
	return fmt.Sprintf(ddl, s.table)
}

// selectColumns lists the canonical columns for Fetch. Postgres renders the
// timestamp as text so the driver does not attach a zone offset.
func (s *SQLStore) selectColumns() string {
	cols := append([]string(nil), sqlColumns...)
	if s.dialect == dialectPostgres {
		cols[0] = `to_char(fecha_hora, 'YYYY-MM-DD HH24:MI:SS.US')`
	}
	return strings.Join(cols, ", ")
}

// WriteRows batch-inserts canonical raw rows.
func (s *SQLStore) WriteRows(ctx context.Context, rows [][]string) error {
	const batchSize = 50
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.insertBatch(ctx, rows[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) insertBatch(ctx context.Context, batch [][]string) error {
	width := len(sqlColumns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*width)

	for idx, row := range batch {
		if len(row) != width {
			return fmt.Errorf("%s: row %d has %d fields, want %d", s.name(), idx, len(row), width)
		}
		marks := make([]string, width)
		for c := range marks {
			marks[c] = s.placeholder(idx*width + c + 1)
			valueArgs = append(valueArgs, row[c])
		}
		valueStrings = append(valueStrings, "("+strings.Join(marks, ",")+")")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		s.table, strings.Join(sqlColumns, ", "), strings.Join(valueStrings, ","))
	if _, err := s.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("%s: insert: %w", s.name(), err)
	}
	return nil
}

// Fetch returns every stored row in insertion order as a raw table.
func (s *SQLStore) Fetch(ctx context.Context) (*models.RawTable, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", s.selectColumns(), s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch: %w", s.name(), err)
	}
	defer rows.Close()

	table := &models.RawTable{Header: append([]string(nil), models.CanonicalHeader...)}
	for rows.Next() {
		cells := make([]sql.NullString, len(sqlColumns))
		dest := make([]interface{}, len(cells))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.name(), err)
		}
		row := make([]string, len(cells))
		for i, c := range cells {
			row[i] = c.String
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: fetch: %w", s.name(), err)
	}
	return table, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == dialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) name() string {
	if s.dialect == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}
