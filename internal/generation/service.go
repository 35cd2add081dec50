package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/astroline/internal/lock"
	"github.com/hitoshi/astroline/internal/model"
	"github.com/hitoshi/astroline/internal/quota"
	"github.com/hitoshi/astroline/internal/repository"
)

const (
	// DefaultDailyLimit はラブスケッチの1日あたりの既定上限。
	DefaultDailyLimit = 2

	// DefaultTimeout は1回の生成全体（画像・画像取得・解釈テキスト）の既定の期限。
	DefaultTimeout = 2 * time.Minute

	// 生成ロックは生成全体の期限より長く保持する。
	lockGrace = 30 * time.Second
)

// Sanitizer は解釈テキストをサニタイズする。
type Sanitizer interface {
	Sanitize(text string) string
}

// Recorder は生成結果をメトリクスに記録する。
type Recorder interface {
	RecordGeneration(outcome string, duration time.Duration)
}

// Result は生成されたラブスケッチ。
type Result struct {
	SketchID       string `json:"-"`
	ImageURL       string `json:"imageUrl"`
	Interpretation string `json:"interpretation"`
}

// Deps はServiceの依存。
type Deps struct {
	Locker    lock.Locker
	Guard     *quota.Guard
	Ledger    repository.ActivityRepository
	Sketches  repository.SketchRepository
	Provider  Provider
	Sanitizer Sanitizer
	Clock     quota.Clock
	Recorder  Recorder
	Logger    *slog.Logger
	// DailyLimit はlove_sketchの1日あたりの上限。
	DailyLimit int
	// Timeout は1回の生成全体の期限。0ならDefaultTimeout。
	// HTTPサーバーのWriteTimeoutはこれより長くする。
	Timeout time.Duration
}

// Service はラブスケッチ生成のゲートウェイ。
// 同時実行ロック、日次上限、プロバイダー呼び出し、永続化、利用記録の順に処理する。
type Service struct {
	deps Deps
}

// NewService はServiceを生成する。
func NewService(deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = quota.SystemClock
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// DailyLimit はlove_sketchの1日あたりの上限を返す。
func (s *Service) DailyLimit() int {
	return s.deps.DailyLimit
}

// Timeout は1回の生成全体の期限を返す。
func (s *Service) Timeout() time.Duration {
	if s.deps.Timeout > 0 {
		return s.deps.Timeout
	}
	return DefaultTimeout
}

// LockTTL は生成ロックの有効期限を返す。生成全体の期限より常に長い。
func (s *Service) LockTTL() time.Duration {
	return s.Timeout() + lockGrace
}

// Generate は認証済みユーザーuserIDのラブスケッチを生成する。
// 失敗した生成と期限内に終わらなかった生成は利用回数に数えない。
func (s *Service) Generate(ctx context.Context, userID string, req Request) (*Result, error) {
	start := time.Now()
	logger := s.deps.Logger.With(slog.String("user_id", userID))

	if err := req.Normalize(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout())
	defer cancel()

	release, err := s.acquire(ctx, userID, logger)
	if err != nil {
		s.record("in_progress", start)
		return nil, err
	}
	if release != nil {
		defer func() {
			if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
				logger.Warn("生成ロックの解放に失敗しました", slog.String("error", rerr.Error()))
			}
		}()
	}

	now := s.deps.Clock.Now()
	decision := s.deps.Guard.Check(ctx, userID, model.CategoryLoveSketch, s.deps.DailyLimit, now)
	if !decision.Allowed {
		logger.Info("日次上限に達したため生成を拒否しました",
			slog.Int("count", decision.Count),
			slog.Int("limit", decision.Limit),
		)
		s.record("quota_denied", start)
		return nil, model.NewDailyLimitReachedError(decision.Limit, decision.Remaining, decision.ResetAt)
	}

	image, err := s.deps.Provider.GenerateImage(ctx, req.ImagePrompt())
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, s.timedOut("image", start, logger)
	}
	if err != nil {
		apiErr := MapProviderError(err)
		if apiErr.Code == model.ErrCodeConfiguration {
			logger.Error("生成プロバイダーの設定に問題があります", slog.String("error", err.Error()))
		} else {
			logger.Error("画像生成に失敗しました", slog.String("error", err.Error()))
		}
		s.record("provider_error", start)
		return nil, apiErr
	}

	interpretation, err := s.deps.Provider.GenerateText(ctx, req.InterpretationPrompt())
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, s.timedOut("interpretation", start, logger)
	}
	if err != nil {
		logger.Warn("解釈テキストの生成に失敗したため既定のテキストを使用します", slog.String("error", err.Error()))
		interpretation = FallbackInterpretation
	}
	interpretation = s.deps.Sanitizer.Sanitize(interpretation)
	if interpretation == "" {
		interpretation = FallbackInterpretation
	}

	mimeType := image.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	result := &Result{
		SketchID:       uuid.New().String(),
		ImageURL:       "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image.Data),
		Interpretation: interpretation,
	}

	completedAt := s.deps.Clock.Now()
	sketch := &model.LoveSketch{
		ID:             result.SketchID,
		UserID:         userID,
		ImageDataURI:   result.ImageURL,
		Interpretation: interpretation,
		Style:          req.ArtisticStyle,
		CreatedAt:      completedAt,
	}
	// 結果の保存と利用記録はクライアントの切断で中断しない
	persistCtx := context.WithoutCancel(ctx)
	if err := s.deps.Sketches.Create(persistCtx, sketch); err != nil {
		logger.Error("ラブスケッチの保存に失敗しました", slog.String("error", err.Error()))
	}

	s.recordActivity(persistCtx, userID, completedAt, logger)

	s.record("success", start)
	logger.Info("ラブスケッチを生成しました",
		slog.String("sketch_id", result.SketchID),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return result, nil
}

// acquire はユーザー単位の生成ロックを取得する。
// ロックが使えない場合はnilを返して続行する。
func (s *Service) acquire(ctx context.Context, userID string, logger *slog.Logger) (lock.ReleaseFunc, error) {
	if s.deps.Locker == nil {
		return nil, nil
	}

	release, err := s.deps.Locker.Acquire(ctx, "quota:"+userID+":"+string(model.CategoryLoveSketch), s.LockTTL())
	switch {
	case err == nil:
		return release, nil
	case errors.Is(err, lock.ErrLockHeld):
		logger.Info("同じユーザーの生成が進行中のため拒否しました")
		return nil, model.NewGenerationInProgressError()
	default:
		logger.Warn("生成ロックを取得できないため、ロックなしで続行します", slog.String("error", err.Error()))
		return nil, nil
	}
}

// timedOut は生成全体の期限切れを記録し、利用者向けのエラーを返す。
// 利用記録は行わない。
func (s *Service) timedOut(stage string, start time.Time, logger *slog.Logger) error {
	logger.Error("生成が期限内に完了しませんでした",
		slog.String("stage", stage),
		slog.Duration("timeout", s.Timeout()),
	)
	s.record("timeout", start)
	return model.NewGenerationTimeoutError()
}

// recordActivity は成功した生成を1件のActivityEventとして記録する。
// 記録に失敗しても生成結果は返す。
func (s *Service) recordActivity(ctx context.Context, userID string, at time.Time, logger *slog.Logger) {
	event := &model.ActivityEvent{
		ID:         uuid.New().String(),
		UserID:     userID,
		Category:   model.CategoryLoveSketch,
		Points:     1,
		OccurredAt: at,
	}

	from, to := quota.Window(at, s.deps.Guard.Location())
	count, err := s.deps.Ledger.AppendAndCount(ctx, event, from, to)
	if err != nil {
		logger.Error("利用記録の追記に失敗しました", slog.String("error", err.Error()))
		return
	}
	if s.deps.DailyLimit > 0 && count > s.deps.DailyLimit {
		logger.Warn("日次上限を超えて記録されました",
			slog.Int("count", count),
			slog.Int("limit", s.deps.DailyLimit),
		)
	}
}

func (s *Service) record(outcome string, start time.Time) {
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordGeneration(outcome, time.Since(start))
	}
}
