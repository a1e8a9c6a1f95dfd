package sink

import (
	"context"

	"greentwin/internal/model"
	"greentwin/internal/store"
)

// SQLiteSink writes records into the local sqlite database
type SQLiteSink struct {
	db *store.DB
}

func NewSQLiteSink(db *store.DB) *SQLiteSink {
	return &SQLiteSink{db: db}
}

func (s *SQLiteSink) WriteMetrics(ctx context.Context, rec model.MetricsRecord) error {
	return s.db.SaveMetrics(ctx, rec)
}

func (s *SQLiteSink) WriteVerdict(ctx context.Context, rec model.VerdictRecord) error {
	return s.db.SaveVerdict(ctx, rec)
}

// Close is a no-op; the database is owned by the caller.
func (s *SQLiteSink) Close() error { return nil }
