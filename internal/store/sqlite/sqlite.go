package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/calder-ai/relay/internal/store"
	"github.com/calder-ai/relay/internal/store/model"
)

// DB is the slice of *sqlx.DB the repositories need.
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db *sqlx.DB
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{db: db}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) Requests() store.RequestRepository {
	return &requestRepo{db: r.db}
}

type requestRepo struct {
	db DB
}

func (r *requestRepo) Log(ctx context.Context, log *model.RequestLog) error {
	query := `
	INSERT INTO request_logs (
		id, requested_model, routed_backend, routed_model,
		used_backend, used_model, used_tier, route_reason, score,
		attempts, succeeded, input_tokens, output_tokens, latency_ms, created_at
	) VALUES (
		:id, :requested_model, :routed_backend, :routed_model,
		:used_backend, :used_model, :used_tier, :route_reason, :score,
		:attempts, :succeeded, :input_tokens, :output_tokens, :latency_ms, :created_at
	)`
	_, err := r.db.NamedExecContext(ctx, query, log)
	return err
}

func (r *requestRepo) GetRecent(ctx context.Context, limit int) ([]model.RequestLog, error) {
	var logs []model.RequestLog
	query := `SELECT * FROM request_logs ORDER BY created_at DESC LIMIT ?`
	err := r.db.SelectContext(ctx, &logs, query, limit)
	return logs, err
}

func (r *requestRepo) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	var stats []model.DailyStats
	query := `
	SELECT
		date(created_at) AS day,
		COUNT(*) AS requests,
		SUM(CASE WHEN attempts > 1 THEN 1 ELSE 0 END) AS failovers,
		SUM(CASE WHEN succeeded = 0 THEN 1 ELSE 0 END) AS failures,
		COALESCE(SUM(input_tokens), 0) AS input_tokens,
		COALESCE(SUM(output_tokens), 0) AS output_tokens
	FROM request_logs
	WHERE created_at >= datetime('now', ?)
	GROUP BY date(created_at)
	ORDER BY day DESC`
	err := r.db.SelectContext(ctx, &stats, query, fmt.Sprintf("-%d days", days))
	return stats, err
}
