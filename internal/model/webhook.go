package model

import "time"

// WebhookDeliveryStatus はWebhook受信の処理結果を表す。
type WebhookDeliveryStatus string

const (
	DeliveryStatusProvisioned WebhookDeliveryStatus = "provisioned"
	DeliveryStatusExisting    WebhookDeliveryStatus = "existing"
	DeliveryStatusRejected    WebhookDeliveryStatus = "rejected"
	DeliveryStatusFailed      WebhookDeliveryStatus = "failed"
)

// WebhookDelivery は受信したWebhookの監査用コピー。
// ヘッダーは認証情報をマスクした状態で保存する。
type WebhookDelivery struct {
	ID           string
	Provider     string
	EventType    string
	Email        string
	Status       WebhookDeliveryStatus
	Headers      map[string]string
	RawBody      string
	ErrorMessage string
	ReceivedAt   time.Time
}
