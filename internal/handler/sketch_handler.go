package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/astroline/internal/generation"
	"github.com/hitoshi/astroline/internal/middleware"
	"github.com/hitoshi/astroline/internal/model"
)

// maxSketchRequestBytes は生成リクエストボディの上限。
const maxSketchRequestBytes = 64 * 1024

// SketchGenerator はラブスケッチ生成のサービスインターフェース。
type SketchGenerator interface {
	Generate(ctx context.Context, userID string, req generation.Request) (*generation.Result, error)
}

// SketchHandler はラブスケッチ生成のHTTPハンドラー。
type SketchHandler struct {
	generator SketchGenerator
}

// NewSketchHandler はSketchHandlerを生成する。
func NewSketchHandler(generator SketchGenerator) *SketchHandler {
	return &SketchHandler{generator: generator}
}

// Generate はラブスケッチを生成する。
// POST /generate-love-sketch
func (h *SketchHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}

	var req generation.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSketchRequestBytes)).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("request body must be a JSON object"))
		return
	}

	result, err := h.generator.Generate(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
