// Package quota はActivity Ledgerを元に日次の利用上限を判定する。
package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/astroline/internal/model"
)

// Counter はActivity Ledgerの件数取得部分。
type Counter interface {
	CountBetween(ctx context.Context, userID string, category model.ActivityCategory, from, to time.Time) (int, error)
}

// DecisionRecorder は判定結果をメトリクスに記録する。
type DecisionRecorder interface {
	RecordQuotaDecision(category, decision string)
}

// Decision はQuota Guardの判定結果。
type Decision struct {
	Category  model.ActivityCategory
	Count     int
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// Degraded はLedgerを読めずにポリシーで判定したことを示す。
	Degraded bool
}

// Options はGuardの設定。
type Options struct {
	Location *time.Location // 日の境界の基準タイムゾーン（nilならUTC）
	FailOpen bool           // Ledger障害時に許可するかどうか
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// Guard はユーザー・カテゴリ単位の日次上限を判定する。
// 判定は毎回Ledgerから再計算し、キャッシュしない。
type Guard struct {
	counter  Counter
	loc      *time.Location
	failOpen bool
	logger   *slog.Logger
	recorder DecisionRecorder
}

// NewGuard はGuardを生成する。
func NewGuard(counter Counter, opts Options) *Guard {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		counter:  counter,
		loc:      loc,
		failOpen: opts.FailOpen,
		logger:   logger,
		recorder: opts.Recorder,
	}
}

// Location は日の境界の基準タイムゾーンを返す。
func (g *Guard) Location() *time.Location {
	return g.loc
}

// Check はnow時点でのuserID・categoryの利用可否を判定し、判定結果をメトリクスに記録する。
// limitが0以下の場合は常に拒否する。
func (g *Guard) Check(ctx context.Context, userID string, category model.ActivityCategory, limit int, now time.Time) Decision {
	d := g.decide(ctx, userID, category, limit, now)
	switch {
	case d.Degraded:
		g.record(category, "degraded")
	case d.Allowed:
		g.record(category, "allowed")
	default:
		g.record(category, "denied")
	}
	return d
}

// Peek はCheckと同じ判定を行うが、メトリクスには記録しない。
// 利用状況の表示用。
func (g *Guard) Peek(ctx context.Context, userID string, category model.ActivityCategory, limit int, now time.Time) Decision {
	return g.decide(ctx, userID, category, limit, now)
}

func (g *Guard) decide(ctx context.Context, userID string, category model.ActivityCategory, limit int, now time.Time) Decision {
	start, reset := Window(now, g.loc)

	count, err := g.counter.CountBetween(ctx, userID, category, start, reset)
	if err != nil {
		d := Decision{
			Category: category,
			Limit:    limit,
			ResetAt:  reset,
			Degraded: true,
		}
		if g.failOpen && limit > 0 {
			d.Allowed = true
			d.Remaining = limit
		}
		g.logger.Error("利用回数の取得に失敗したためポリシーで判定しました",
			slog.String("error", err.Error()),
			slog.String("user_id", userID),
			slog.String("category", string(category)),
			slog.Bool("fail_open", g.failOpen),
			slog.Bool("allowed", d.Allowed),
		)
		return d
	}

	d := Evaluate(count, limit)
	d.Category = category
	d.ResetAt = reset
	return d
}

// Evaluate はcountとlimitから許可・残り回数を計算する。
func Evaluate(count, limit int) Decision {
	if limit <= 0 {
		return Decision{Count: count, Limit: limit}
	}
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Count:     count,
		Allowed:   count < limit,
		Limit:     limit,
		Remaining: remaining,
	}
}

func (g *Guard) record(category model.ActivityCategory, decision string) {
	if g.recorder != nil {
		g.recorder.RecordQuotaDecision(string(category), decision)
	}
}
