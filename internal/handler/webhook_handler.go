package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/astroline/internal/model"
	"github.com/hitoshi/astroline/internal/provisioning"
	"github.com/hitoshi/astroline/internal/repository"
	"github.com/hitoshi/astroline/internal/webhook"
)

// DefaultWebhookMaxBodyBytes はWebhookボディの既定上限（256KiB）。
const DefaultWebhookMaxBodyBytes int64 = 256 * 1024

// Provisioner はメールアドレスに対応するアカウントを用意するサービスインターフェース。
type Provisioner interface {
	Provision(ctx context.Context, email string) (*provisioning.Result, error)
}

// WebhookRecorder はWebhookの処理結果をメトリクスに記録する。
type WebhookRecorder interface {
	RecordWebhookDelivery(outcome string)
}

// WebhookConfig はWebhookハンドラーの設定。
type WebhookConfig struct {
	// Secret が空でない場合、X-Webhook-Tokenヘッダーまたはtokenクエリに同じ値を要求する。
	Secret       string
	MaxBodyBytes int64
}

// WebhookHandler は購入完了Webhookを受け取りアカウントを用意するHTTPハンドラー。
type WebhookHandler struct {
	provisioner Provisioner
	deliveries  repository.WebhookDeliveryRepository
	parser      *webhook.Parser
	recorder    WebhookRecorder
	config      WebhookConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewWebhookHandler はWebhookHandlerを生成する。deliveriesとrecorderはnilでもよい。
func NewWebhookHandler(provisioner Provisioner, deliveries repository.WebhookDeliveryRepository, recorder WebhookRecorder, config WebhookConfig, logger *slog.Logger) *WebhookHandler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultWebhookMaxBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		provisioner: provisioner,
		deliveries:  deliveries,
		parser:      webhook.NewParser(),
		recorder:    recorder,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

type webhookSuccessResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// HandleCartPanda は購入完了Webhookを処理する。
// POST /cartpanda-webhook
func (h *WebhookHandler) HandleCartPanda(w http.ResponseWriter, r *http.Request) {
	delivery := &model.WebhookDelivery{
		ID:         uuid.New().String(),
		Provider:   webhook.ProviderCartPanda,
		Headers:    webhook.RedactHeaders(r.Header),
		ReceivedAt: h.now(),
	}
	logger := h.logger.With(
		slog.String("delivery_id", delivery.ID),
		slog.String("provider", delivery.Provider),
	)

	if !h.authorized(r) {
		logger.Warn("Webhookトークンが一致しません",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		h.finish(r.Context(), logger, delivery, model.DeliveryStatusRejected, "unauthorized", model.NewWebhookUnauthorizedError())
		handleServiceError(w, model.NewWebhookUnauthorizedError())
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apiErr := model.NewPayloadTooLargeError(h.config.MaxBodyBytes)
			logger.Warn("Webhookボディが上限を超えています", slog.Int64("limit", h.config.MaxBodyBytes))
			h.finish(r.Context(), logger, delivery, model.DeliveryStatusRejected, "too_large", apiErr)
			handleServiceError(w, apiErr)
			return
		}
		apiErr := model.NewInvalidPayloadError("failed to read request body")
		h.finish(r.Context(), logger, delivery, model.DeliveryStatusRejected, "rejected", apiErr)
		handleServiceError(w, apiErr)
		return
	}
	delivery.RawBody = string(body)

	logger.Info("Webhookを受信しました",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("headers", delivery.Headers),
		slog.String("raw_body", delivery.RawBody),
	)

	payload, err := h.parser.Parse(body)
	if payload != nil {
		delivery.EventType = payload.Event
		logger.Info("Webhookボディを解析しました",
			slog.String("event", payload.Event),
			slog.String("order_id", payload.OrderID),
			slog.Any("parsed_body", payload.Raw),
		)
	}
	if err != nil {
		logger.Warn("Webhookボディを受け付けられません", slog.String("error", err.Error()))
		h.finish(r.Context(), logger, delivery, model.DeliveryStatusRejected, "rejected", err)
		handleServiceError(w, err)
		return
	}
	delivery.Email = payload.Email

	result, err := h.provisioner.Provision(r.Context(), payload.Email)
	if err != nil {
		logger.Error("アカウントの作成に失敗しました",
			slog.String("email", payload.Email),
			slog.String("error", err.Error()),
		)
		h.finish(r.Context(), logger, delivery, model.DeliveryStatusFailed, "failed", err)
		handleServiceError(w, err)
		return
	}

	status, outcome := model.DeliveryStatusExisting, "existing"
	if result.Created {
		status, outcome = model.DeliveryStatusProvisioned, "provisioned"
	}
	logger.Info("Webhookを処理しました",
		slog.String("email", result.Email),
		slog.String("user_id", result.UserID),
		slog.Bool("created", result.Created),
	)
	h.finish(r.Context(), logger, delivery, status, outcome, nil)

	writeJSON(w, http.StatusOK, webhookSuccessResponse{
		Success: true,
		UserID:  result.UserID,
		Email:   result.Email,
		Message: result.Message,
	})
}

// authorized は共有シークレットが設定されている場合にトークンを定数時間で比較する。
func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.config.Secret == "" {
		return true
	}
	token := r.Header.Get("X-Webhook-Token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.config.Secret)) == 1
}

// finish は監査用の配信記録を保存し、結果をメトリクスに記録する。
// 保存に失敗してもレスポンスには影響させない。
func (h *WebhookHandler) finish(ctx context.Context, logger *slog.Logger, d *model.WebhookDelivery, status model.WebhookDeliveryStatus, outcome string, cause error) {
	if h.recorder != nil {
		h.recorder.RecordWebhookDelivery(outcome)
	}
	if h.deliveries == nil {
		return
	}

	d.Status = status
	if cause != nil {
		d.ErrorMessage = cause.Error()
	}
	if err := h.deliveries.Create(context.WithoutCancel(ctx), d); err != nil {
		logger.Error("Webhook配信記録の保存に失敗しました", slog.String("error", err.Error()))
	}
}
