// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は生成プロバイダーが返した解釈テキストからHTMLを除去する。
// ImageFetcher はプロバイダーが返した画像URLをSSRF対策付きで取得する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// quoteUnescaper はbluemondayがエスケープした引用符だけを元に戻す。
// &amp; &lt; &gt; はエスケープされたまま残す。
var quoteUnescaper = strings.NewReplacer("&#39;", "'", "&#34;", `"`, "&quot;", `"`)

// TextSanitizer はタグを一切許可しないポリシーでテキストをサニタイズする。
// bluemondayのポリシーはスレッドセーフなので共有してよい。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize は全てのタグを除去し、前後の空白を取り除いたテキストを返す。
func (s *TextSanitizer) Sanitize(text string) string {
	return strings.TrimSpace(quoteUnescaper.Replace(s.policy.Sanitize(text)))
}
