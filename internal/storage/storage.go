// Package storage defines the persistence interface for bot queries and per-INN results.
package storage

import (
	"context"
	"errors"

	"github.com/Evgen-rus/Tg-mtproto/internal/models"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("not found")

// Storage defines query log and result persistence operations.
type Storage interface {
	// Query log (append-only)
	LogQuery(ctx context.Context, text string) (int64, error)
	GetQuery(ctx context.Context, id int64) (*models.QueryLogEntry, error)

	// Results, one per INN
	UpsertResult(ctx context.Context, queryID int64, rec *models.Record) error
	GetResult(ctx context.Context, inn string) (*models.Result, error)
	ListResults(ctx context.Context, offset, limit int) ([]*models.Result, error)
	ListResultsByQuery(ctx context.Context, queryID int64) ([]*models.Result, error)

	// Export
	ListExportRows(ctx context.Context) ([]*models.ExportRow, error)

	// Stats
	CountQueries(ctx context.Context) (int64, error)
	CountResults(ctx context.Context) (int64, error)

	Close() error
}
