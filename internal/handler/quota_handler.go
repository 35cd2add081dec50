package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/astroline/internal/middleware"
	"github.com/hitoshi/astroline/internal/model"
	"github.com/hitoshi/astroline/internal/quota"
)

// QuotaChecker は日次上限の表示用判定を行うインターフェース。quota.Guardが実装する。
// 判定メトリクスには記録しない。
type QuotaChecker interface {
	Peek(ctx context.Context, userID string, category model.ActivityCategory, limit int, now time.Time) quota.Decision
}

// QuotaHandler は日次上限の表示用エンドポイントのハンドラー。
// 表示専用であり、生成時には改めて判定する。
type QuotaHandler struct {
	checker QuotaChecker
	clock   quota.Clock
	limits  map[model.ActivityCategory]int
}

// NewQuotaHandler はQuotaHandlerを生成する。
// limitsに含まれるカテゴリだけが上限付きとして公開される。
func NewQuotaHandler(checker QuotaChecker, clock quota.Clock, limits map[model.ActivityCategory]int) *QuotaHandler {
	if clock == nil {
		clock = quota.SystemClock
	}
	return &QuotaHandler{checker: checker, clock: clock, limits: limits}
}

type quotaResponse struct {
	Category  string `json:"category"`
	Count     int    `json:"count"`
	Allowed   bool   `json:"allowed"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	ResetAt   string `json:"resetAt"`
}

// GetQuota は認証ユーザーの本日の利用状況を返す。
// GET /api/quota/{category}
func (h *QuotaHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}

	raw := chi.URLParam(r, "category")
	category, ok := model.ParseActivityCategory(raw)
	if !ok {
		handleServiceError(w, model.NewInvalidCategoryError(raw))
		return
	}
	limit, ok := h.limits[category]
	if !ok {
		handleServiceError(w, model.NewInvalidCategoryError(raw))
		return
	}

	d := h.checker.Peek(r.Context(), userID, category, limit, h.clock.Now())

	writeJSON(w, http.StatusOK, quotaResponse{
		Category:  string(category),
		Count:     d.Count,
		Allowed:   d.Allowed,
		Limit:     d.Limit,
		Remaining: d.Remaining,
		ResetAt:   d.ResetAt.UTC().Format(time.RFC3339),
	})
}
