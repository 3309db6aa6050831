package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-exit-api/internal/models"
)

// FaceRepository reads registered face images for listing enrichment.
type FaceRepository struct {
	db *sqlx.DB
}

// NewFaceRepository constructs the repository.
func NewFaceRepository(db *sqlx.DB) *FaceRepository {
	return &FaceRepository{db: db}
}

// FindByUser returns the face record for a user.
func (r *FaceRepository) FindByUser(ctx context.Context, userID string) (*models.FaceRecord, error) {
	const query = `SELECT user_id, image_data, created_at FROM faces WHERE user_id = $1`
	var face models.FaceRecord
	if err := r.db.GetContext(ctx, &face, query, userID); err != nil {
		return nil, err
	}
	return &face, nil
}
