// Package webhook はコマースプラットフォームから届くWebhookの解析を行う。
// 生のJSONを一度map[string]anyで受け、既知のパスから型付きのPayloadへ変換する。
package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/astroline/internal/model"
)

// ProviderCartPanda はCartPandaからの配信を表すプロバイダー名。
const ProviderCartPanda = "cartpanda"

// Payload は購入完了Webhookから取り出した値。
type Payload struct {
	Event   string
	Email   string
	OrderID string
	// Raw は解析済みのJSONオブジェクト（ログ出力用）。
	Raw map[string]any
}

// EmailExtractor はJSONオブジェクトからメールアドレスを取り出す。
// 見つからない場合は空文字を返す。
type EmailExtractor struct {
	Name    string
	Extract func(body map[string]any) string
}

// DefaultExtractors は優先順のメールアドレス取得ルール。先に一致したものを採用する。
var DefaultExtractors = []EmailExtractor{
	{Name: "order.email", Extract: pathString("order", "email")},
	{Name: "order.customer.email", Extract: pathString("order", "customer", "email")},
}

// Parser はWebhookボディをPayloadに変換する。
type Parser struct {
	extractors []EmailExtractor
}

// NewParser はextractorsを優先順に使うParserを生成する。
// extractorsが空の場合はDefaultExtractorsを使う。
func NewParser(extractors ...EmailExtractor) *Parser {
	if len(extractors) == 0 {
		extractors = DefaultExtractors
	}
	return &Parser{extractors: extractors}
}

// Parse はボディを解析し、メールアドレスを1つ解決したPayloadを返す。
// JSONオブジェクトでない場合、メールアドレスが見つからない場合、
// 最初に見つかった値がメールアドレスとして不正な場合は*model.APIErrorを返す。
func (p *Parser) Parse(body []byte) (*Payload, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return nil, model.NewInvalidPayloadError(err.Error())
	}

	payload := &Payload{
		Event:   pathString("event")(raw),
		OrderID: orderID(raw),
		Raw:     raw,
	}

	for _, ex := range p.extractors {
		email := strings.TrimSpace(ex.Extract(raw))
		if email == "" {
			continue
		}
		if !model.IsValidEmail(email) {
			return payload, model.NewInvalidEmailError()
		}
		payload.Email = email
		return payload, nil
	}

	return payload, model.NewNoCustomerEmailError()
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return obj, nil
}

// pathString はネストしたキーを辿って文字列値を返す関数を生成する。
// 途中がオブジェクトでない場合や値が文字列でない場合は空文字を返す。
func pathString(keys ...string) func(map[string]any) string {
	return func(body map[string]any) string {
		v, ok := lookup(body, keys...)
		if !ok {
			return ""
		}
		s, _ := v.(string)
		return s
	}
}

func lookup(body map[string]any, keys ...string) (any, bool) {
	var cur any = body
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// orderID はorder.idを文字列で返す。数値IDも受け付ける。
func orderID(body map[string]any) string {
	v, ok := lookup(body, "order", "id")
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
