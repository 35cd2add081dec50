package middleware

import "net/http"

// StatusRecorder はレスポンスステータスを記録するメトリクスのインターフェース。
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// NewHTTPMetricsMiddleware はレスポンスのステータスコードをメトリクスに記録するミドルウェアを返す。
func NewHTTPMetricsMiddleware(recorder StatusRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := wrapStatus(w, r)
			next.ServeHTTP(ww, r)
			recorder.RecordHTTPStatus(statusOf(ww))
		})
	}
}
