package webhook

import (
	"net/http"
	"strings"
)

// redactedValue はログと監査記録で秘匿値の代わりに出力する文字列。
const redactedValue = "[REDACTED]"

var sensitiveHeaders = map[string]bool{
	"authorization":   true,
	"cookie":          true,
	"x-webhook-token": true,
	"apikey":          true,
}

// RedactHeaders はヘッダーを1キー1値のmapに変換し、認証系の値を伏せる。
func RedactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if sensitiveHeaders[strings.ToLower(k)] || strings.Contains(strings.ToLower(k), "token") {
			out[k] = redactedValue
			continue
		}
		out[k] = strings.Join(vs, ", ")
	}
	return out
}
