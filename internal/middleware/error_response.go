package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/astroline/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// APIError.Detailsのキーは同じ階層に展開する。
type ErrorResponseBody map[string]any

// NewErrorResponseBody はAPIErrorからレスポンスボディを組み立てる。
// errorとcodeはDetailsで上書きされない。
func NewErrorResponseBody(apiErr *model.APIError) ErrorResponseBody {
	body := make(ErrorResponseBody, len(apiErr.Details)+2)
	for k, v := range apiErr.Details {
		body[k] = v
	}
	body["error"] = apiErr.Message
	body["code"] = apiErr.Code
	return body
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで {"error": ..., "code": ...} を返す。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(NewErrorResponseBody(apiErr))
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
