// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// APIError は統一エラーフォーマットを表す。
// HTTPレスポンスでは {"error": Message, "code": Code} として返す。
type APIError struct {
	Code     string         // エラーコード
	Message  string         // ユーザー向けメッセージ
	Category string         // カテゴリ: validation, auth, quota, upstream, configuration, system
	Details  map[string]any // レスポンスに追加で含める値（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidPayload       = "INVALID_PAYLOAD"
	ErrCodeNoCustomerEmail      = "NO_CUSTOMER_EMAIL"
	ErrCodeInvalidEmail         = "INVALID_EMAIL"
	ErrCodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	ErrCodeWebhookUnauthorized  = "WEBHOOK_UNAUTHORIZED"
	ErrCodeIdentityStore        = "IDENTITY_STORE_ERROR"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidCategory      = "INVALID_CATEGORY"
	ErrCodeDailyLimitReached    = "DAILY_LIMIT_REACHED"
	ErrCodeGenerationInProgress = "GENERATION_IN_PROGRESS"
	ErrCodeProviderRateLimited  = "PROVIDER_RATE_LIMITED"
	ErrCodeConfiguration        = "CONFIGURATION_ERROR"
	ErrCodeProviderUnavailable  = "PROVIDER_UNAVAILABLE"
	ErrCodeGenerationFailed     = "GENERATION_FAILED"
	ErrCodeGenerationTimeout    = "GENERATION_TIMEOUT"
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewInvalidPayloadError はJSONとして解釈できないリクエストボディのエラーを生成する。
func NewInvalidPayloadError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPayload,
		Message:  fmt.Sprintf("invalid JSON payload: %s", reason),
		Category: "validation",
	}
}

// NewNoCustomerEmailError は既知のどのパスにもメールアドレスがない場合のエラーを生成する。
func NewNoCustomerEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeNoCustomerEmail,
		Message:  "no customer email found",
		Category: "validation",
	}
}

// NewInvalidEmailError はメールアドレスとして解釈できない値のエラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "invalid customer email",
		Category: "validation",
	}
}

// NewPayloadTooLargeError はボディサイズ超過のエラーを生成する。
func NewPayloadTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  fmt.Sprintf("payload too large (max %d bytes)", limit),
		Category: "validation",
	}
}

// NewWebhookUnauthorizedError は共有シークレット不一致のエラーを生成する。
func NewWebhookUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeWebhookUnauthorized,
		Message:  "invalid webhook token",
		Category: "auth",
	}
}

// NewIdentityStoreError はIdentity Storeの失敗をストアのメッセージ付きで生成する。
func NewIdentityStoreError(storeMessage string) *APIError {
	return &APIError{
		Code:     ErrCodeIdentityStore,
		Message:  storeMessage,
		Category: "upstream",
	}
}

// NewUnauthorizedError は未認証のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized, please log in again",
		Category: "auth",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワードの不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "invalid email or password",
		Category: "auth",
	}
}

// NewInvalidRequestError はリクエスト内容が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
	}
}

// NewInvalidCategoryError は未知のアクティビティカテゴリのエラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("unknown activity category: %s", category),
		Category: "validation",
	}
}

// NewDailyLimitReachedError は日次上限到達のエラーを生成する。
// limit、remaining、resetAtはUI表示用にレスポンスへ含める。
func NewDailyLimitReachedError(limit, remaining int, resetAt time.Time) *APIError {
	return &APIError{
		Code:     ErrCodeDailyLimitReached,
		Message:  fmt.Sprintf("Daily limit reached: you can generate %d love sketches per day. It resets tomorrow.", limit),
		Category: "quota",
		Details: map[string]any{
			"limit":     limit,
			"remaining": remaining,
			"resetAt":   resetAt.UTC().Format(time.RFC3339),
		},
	}
}

// NewGenerationInProgressError は同一ユーザーの生成が進行中の場合のエラーを生成する。
func NewGenerationInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationInProgress,
		Message:  "A sketch is already being generated, please wait",
		Category: "quota",
	}
}

// NewProviderRateLimitedError は生成プロバイダーのレート制限エラーを生成する。
func NewProviderRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderRateLimited,
		Message:  "Too many requests, please retry shortly",
		Category: "upstream",
	}
}

// NewConfigurationError はサーバー側の設定不備エラーを生成する。詳細はログのみに残す。
func NewConfigurationError() *APIError {
	return &APIError{
		Code:     ErrCodeConfiguration,
		Message:  "Server configuration issue, please contact support",
		Category: "configuration",
	}
}

// NewProviderUnavailableError はプロバイダーの利用枠・課金上限到達のエラーを生成する。
func NewProviderUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderUnavailable,
		Message:  "Service temporarily unavailable, please contact support",
		Category: "upstream",
	}
}

// NewGenerationFailedError はその他のプロバイダーエラーをメッセージ付きで生成する。
func NewGenerationFailedError(providerMessage string) *APIError {
	return &APIError{
		Code:     ErrCodeGenerationFailed,
		Message:  fmt.Sprintf("Image generation failed: %s", providerMessage),
		Category: "upstream",
	}
}

// NewGenerationTimeoutError は生成が期限内に完了しなかった場合のエラーを生成する。
func NewGenerationTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationTimeout,
		Message:  "Image generation took too long, please try again",
		Category: "upstream",
	}
}

// NewRateLimitExceededError はAPIのレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: "quota",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "internal server error",
		Category: "system",
	}
}
