// Package generation はラブスケッチ（画像と解釈テキスト）の生成を行う。
package generation

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingAPIKey はプロバイダーのAPIキーが設定されていない場合に返される。
var ErrMissingAPIKey = errors.New("generation provider api key is not configured")

// Image はプロバイダーが生成した画像。
type Image struct {
	Data     []byte
	MIMEType string
}

// Provider は外部の生成プロバイダー。各メソッドは1回だけ呼び出し、リトライしない。
type Provider interface {
	GenerateImage(ctx context.Context, prompt string) (*Image, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ProviderError はプロバイダーが返したエラー応答。
type ProviderError struct {
	StatusCode int
	Code       string // 例: invalid_api_key, insufficient_quota
	Type       string // 例: invalid_request_error
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}
