package generation

import (
	"errors"
	"net/http"

	"github.com/hitoshi/astroline/internal/model"
)

// MapProviderError はプロバイダー呼び出しのエラーを利用者向けのAPIErrorに変換する。
// 認証情報や課金状態の詳細はメッセージに含めない。
func MapProviderError(err error) *model.APIError {
	if errors.Is(err, ErrMissingAPIKey) {
		return model.NewConfigurationError()
	}

	var perr *ProviderError
	if !errors.As(err, &perr) {
		return model.NewGenerationFailedError(err.Error())
	}

	switch {
	case perr.StatusCode == http.StatusTooManyRequests && !isBillingCode(perr.Code):
		return model.NewProviderRateLimitedError()
	case perr.StatusCode == http.StatusUnauthorized,
		perr.StatusCode == http.StatusForbidden,
		perr.Code == "invalid_api_key":
		return model.NewConfigurationError()
	case perr.StatusCode == http.StatusPaymentRequired, isBillingCode(perr.Code):
		return model.NewProviderUnavailableError()
	default:
		return model.NewGenerationFailedError(perr.Message)
	}
}

// isBillingCode は利用枠・課金上限に関するエラーコードかを判定する。
// OpenAIはinsufficient_quotaを429で返すため、レート制限より先に判定する。
func isBillingCode(code string) bool {
	return code == "insufficient_quota" || code == "billing_hard_limit_reached"
}
