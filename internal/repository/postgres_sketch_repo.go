package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/astroline/internal/model"
)

// PostgresSketchRepo はPostgreSQLを使用したラブスケッチリポジトリ。
type PostgresSketchRepo struct {
	db *sql.DB
}

// NewPostgresSketchRepo はPostgresSketchRepoを生成する。
func NewPostgresSketchRepo(db *sql.DB) *PostgresSketchRepo {
	return &PostgresSketchRepo{db: db}
}

// Create はラブスケッチを保存する。
func (r *PostgresSketchRepo) Create(ctx context.Context, sketch *model.LoveSketch) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO love_sketches (id, user_id, image_data_uri, interpretation, style, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sketch.ID, sketch.UserID, sketch.ImageDataURI, sketch.Interpretation, sketch.Style, sketch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert love sketch: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SketchRepository = (*PostgresSketchRepo)(nil)
