package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/astroline/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresActivityRepo はpgxpoolを使用したActivity Ledgerリポジトリ。
// 追記と件数取得を1トランザクションで行うため、database/sqlではなくpgxを使う。
type PostgresActivityRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresActivityRepo はPostgresActivityRepoを生成する。
func NewPostgresActivityRepo(pool *pgxpool.Pool) *PostgresActivityRepo {
	return &PostgresActivityRepo{pool: pool}
}

// AppendAndCount はイベントを追記し、追記後の [from, to) の件数を返す。
// (user_id, category) 単位のアドバイザリロックをトランザクション内で取得し、
// 同一ユーザー・カテゴリへの並行追記を直列化する。
func (r *PostgresActivityRepo) AppendAndCount(ctx context.Context, event *model.ActivityEvent, from, to time.Time) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		//nolint:errcheck // コミット済みの場合のRollbackエラーは無視してよい
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || $2::text))`,
		event.UserID, string(event.Category),
	); err != nil {
		return 0, fmt.Errorf("failed to acquire ledger lock: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO activity_events (id, user_id, category, points, occurred_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.UserID, string(event.Category), event.Points, event.OccurredAt,
	); err != nil {
		return 0, fmt.Errorf("failed to append activity event: %w", err)
	}

	count, err := countBetween(ctx, tx, event.UserID, event.Category, from, to)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return count, nil
}

// CountBetween は [from, to) に含まれる同一ユーザー・カテゴリのイベント数を返す。
func (r *PostgresActivityRepo) CountBetween(ctx context.Context, userID string, category model.ActivityCategory, from, to time.Time) (int, error) {
	return countBetween(ctx, r.pool, userID, category, from, to)
}

// querier はpgxpool.Poolとpgx.Txの共通部分。
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func countBetween(ctx context.Context, q querier, userID string, category model.ActivityCategory, from, to time.Time) (int, error) {
	var count int
	err := q.QueryRow(ctx,
		`SELECT count(*) FROM activity_events
		 WHERE user_id = $1 AND category = $2
		   AND occurred_at >= $3 AND occurred_at < $4`,
		userID, string(category), from, to,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count activity events: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ ActivityRepository = (*PostgresActivityRepo)(nil)
