// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Evgen-rus/Tg-mtproto/internal/models"
)

// timeFormat is fixed width so that text comparison in SQL orders chronologically.
const timeFormat = "2006-01-02 15:04:05.000000Z07:00"

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithClock sets the time source for created_at / updated_at. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStorage) { s.now = now }
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. The pool holds a single connection,
// so writes are serialized.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStorage{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS source_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_text TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS inn_results (
		id INTEGER PRIMARY KEY,
		inn TEXT NOT NULL UNIQUE,
		ogrn TEXT,
		company_name TEXT,
		okved TEXT,
		reg_date TEXT,
		company_status TEXT,
		director_name TEXT,
		director_inn TEXT,
		employees_count INTEGER,
		revenue_2024 INTEGER,
		income_2024 INTEGER,
		expenses_2024 INTEGER,
		authorized_capital INTEGER,
		address TEXT,
		founders_json TEXT,
		raw_text TEXT NOT NULL,
		source_query_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (source_query_id) REFERENCES source_queries(id)
	);

	CREATE INDEX IF NOT EXISTS idx_inn_results_source_query_id ON inn_results(source_query_id);
	CREATE INDEX IF NOT EXISTS idx_inn_results_updated_at ON inn_results(updated_at);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStorage) timestamp() string {
	return s.now().UTC().Format(timeFormat)
}

// LogQuery appends a query log entry stamped with the current UTC time and returns its id.
func (s *SQLiteStorage) LogQuery(ctx context.Context, text string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO source_queries (query_text, created_at) VALUES (?, ?)`,
		text, s.timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to log query: %w", err)
	}
	return res.LastInsertId()
}

// GetQuery returns a query log entry by id.
func (s *SQLiteStorage) GetQuery(ctx context.Context, id int64) (*models.QueryLogEntry, error) {
	var q models.QueryLogEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT id, query_text, created_at FROM source_queries WHERE id = ?`, id,
	).Scan(&q.ID, &q.QueryText, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// UpsertResult inserts the record for an unseen INN, or replaces every field of the existing
// row (source_query_id included). created_at is kept; updated_at never moves backwards.
// The single statement is atomic, so concurrent calls for one INN still leave one row.
func (s *SQLiteStorage) UpsertResult(ctx context.Context, queryID int64, rec *models.Record) error {
	foundersJSON, err := marshalFounders(rec.Founders)
	if err != nil {
		return err
	}
	now := s.timestamp()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO inn_results (
			inn, ogrn, company_name, okved, reg_date, company_status,
			director_name, director_inn, employees_count,
			revenue_2024, income_2024, expenses_2024, authorized_capital,
			address, founders_json, raw_text, source_query_id, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(inn) DO UPDATE SET
			ogrn = excluded.ogrn,
			company_name = excluded.company_name,
			okved = excluded.okved,
			reg_date = excluded.reg_date,
			company_status = excluded.company_status,
			director_name = excluded.director_name,
			director_inn = excluded.director_inn,
			employees_count = excluded.employees_count,
			revenue_2024 = excluded.revenue_2024,
			income_2024 = excluded.income_2024,
			expenses_2024 = excluded.expenses_2024,
			authorized_capital = excluded.authorized_capital,
			address = excluded.address,
			founders_json = excluded.founders_json,
			raw_text = excluded.raw_text,
			source_query_id = excluded.source_query_id,
			updated_at = MAX(inn_results.updated_at, excluded.updated_at)`,
		rec.INN, rec.OGRN, rec.CompanyName, rec.OKVED, rec.RegDate, rec.CompanyStatus,
		rec.DirectorName, rec.DirectorINN, rec.EmployeesCount,
		rec.Revenue2024, rec.Income2024, rec.Expenses2024, rec.AuthorizedCapital,
		rec.Address, foundersJSON, rec.RawText, queryID, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert result for inn %s: %w", rec.INN, err)
	}
	return nil
}

const resultColumns = `r.id, r.inn, r.ogrn, r.company_name, r.okved, r.reg_date, r.company_status,
	r.director_name, r.director_inn, r.employees_count,
	r.revenue_2024, r.income_2024, r.expenses_2024, r.authorized_capital,
	r.address, r.founders_json, r.raw_text, r.source_query_id, r.created_at, r.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner, extra ...interface{}) (*models.Result, error) {
	var r models.Result
	var foundersJSON sql.NullString
	dest := []interface{}{
		&r.ID, &r.INN, &r.OGRN, &r.CompanyName, &r.OKVED, &r.RegDate, &r.CompanyStatus,
		&r.DirectorName, &r.DirectorINN, &r.EmployeesCount,
		&r.Revenue2024, &r.Income2024, &r.Expenses2024, &r.AuthorizedCapital,
		&r.Address, &foundersJSON, &r.RawText, &r.SourceQueryID, &r.CreatedAt, &r.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if foundersJSON.Valid {
		founders, err := unmarshalFounders(foundersJSON.String)
		if err != nil {
			return nil, fmt.Errorf("inn %s: %w", r.INN, err)
		}
		r.Founders = founders
	}
	return &r, nil
}

// GetResult returns the stored result for inn.
func (s *SQLiteStorage) GetResult(ctx context.Context, inn string) (*models.Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM inn_results r WHERE r.inn = ?`, inn)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result for inn %s: %w", inn, ErrNotFound)
	}
	return r, err
}

// ListResults returns results, most recently updated first, with offset and limit.
func (s *SQLiteStorage) ListResults(ctx context.Context, offset, limit int) ([]*models.Result, error) {
	return s.queryResults(ctx,
		`SELECT `+resultColumns+` FROM inn_results r
		 ORDER BY r.updated_at DESC, r.id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
}

// ListResultsByQuery returns the results whose latest data came from the given query.
func (s *SQLiteStorage) ListResultsByQuery(ctx context.Context, queryID int64) ([]*models.Result, error) {
	return s.queryResults(ctx,
		`SELECT `+resultColumns+` FROM inn_results r
		 WHERE r.source_query_id = ? ORDER BY r.inn`,
		queryID,
	)
}

func (s *SQLiteStorage) queryResults(ctx context.Context, query string, args ...interface{}) ([]*models.Result, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListExportRows returns every result joined with its source query, most recently updated first.
func (s *SQLiteStorage) ListExportRows(ctx context.Context) ([]*models.ExportRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultColumns+`, q.query_text, q.created_at
		 FROM inn_results r
		 JOIN source_queries q ON q.id = r.source_query_id
		 ORDER BY r.updated_at DESC, r.id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ExportRow
	for rows.Next() {
		var row models.ExportRow
		r, err := scanResult(rows, &row.SourceQueryText, &row.SourceQueryCreatedAt)
		if err != nil {
			return nil, err
		}
		row.Result = *r
		out = append(out, &row)
	}
	return out, rows.Err()
}

// CountQueries returns the number of query log entries.
func (s *SQLiteStorage) CountQueries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM source_queries`).Scan(&count)
	return count, err
}

// CountResults returns the number of stored results.
func (s *SQLiteStorage) CountResults(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inn_results`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// marshalFounders returns nil (SQL NULL) when the founders heading was absent.
func marshalFounders(founders []models.Founder) (interface{}, error) {
	if founders == nil {
		return nil, nil
	}
	b, err := json.Marshal(founders)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal founders: %w", err)
	}
	return string(b), nil
}

func unmarshalFounders(s string) ([]models.Founder, error) {
	founders := make([]models.Founder, 0)
	if err := json.Unmarshal([]byte(s), &founders); err != nil {
		return nil, fmt.Errorf("failed to unmarshal founders: %w", err)
	}
	return founders, nil
}
