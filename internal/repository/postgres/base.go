package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medisync/clinic-api/pkg/metrics"
)

// BaseRepository provides common functionality for all repositories.
// Statements run through the instrumented helpers so operation counts
// and latency land in the same metrics regardless of which repository
// issued them.
type BaseRepository struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

// NewBaseRepository creates a new base repository. Metrics may be nil
// for callers that do not export them.
func NewBaseRepository(db *sqlx.DB, m *metrics.Metrics) BaseRepository {
	return BaseRepository{db: db, metrics: m}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

func (r *BaseRepository) get(ctx context.Context, op string, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := r.db.GetContext(ctx, dest, query, args...)
	r.observe(op, start, err)
	return err
}

func (r *BaseRepository) selectMany(ctx context.Context, op string, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := r.db.SelectContext(ctx, dest, query, args...)
	r.observe(op, start, err)
	return err
}

func (r *BaseRepository) exec(ctx context.Context, op string, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := r.db.ExecContext(ctx, query, args...)
	r.observe(op, start, err)
	return result, err
}

// WithTx executes a function within a transaction, recorded under op.
func (r *BaseRepository) WithTx(ctx context.Context, op string, fn func(*sqlx.Tx) error) error {
	start := time.Now()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.observe(op, start, err)
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		r.observe(op, start, err)
		return err
	}

	err = tx.Commit()
	r.observe(op, start, err)
	return err
}

func (r *BaseRepository) observe(op string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.DatabaseOperations.WithLabelValues(op, status).Inc()
	r.metrics.DatabaseLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
