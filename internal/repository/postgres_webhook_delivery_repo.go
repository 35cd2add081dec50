package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/astroline/internal/model"
)

// PostgresWebhookDeliveryRepo はPostgreSQLを使用したWebhook受信記録リポジトリ。
type PostgresWebhookDeliveryRepo struct {
	db *sql.DB
}

// NewPostgresWebhookDeliveryRepo はPostgresWebhookDeliveryRepoを生成する。
func NewPostgresWebhookDeliveryRepo(db *sql.DB) *PostgresWebhookDeliveryRepo {
	return &PostgresWebhookDeliveryRepo{db: db}
}

// Create は受信記録を保存する。ヘッダーはJSONBとして保存する。
func (r *PostgresWebhookDeliveryRepo) Create(ctx context.Context, d *model.WebhookDelivery) error {
	headers, err := json.Marshal(d.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook headers: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries
		   (id, provider, event_type, email, status, headers, raw_body, error_message, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.Provider, d.EventType, d.Email, string(d.Status), headers, d.RawBody, d.ErrorMessage, d.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert webhook delivery: %w", err)
	}
	return nil
}

// compile-time interface check
var _ WebhookDeliveryRepository = (*PostgresWebhookDeliveryRepo)(nil)
