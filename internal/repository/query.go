package repository

import (
	"context"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// QueryRepositoryImpl implements QueryRepository
type QueryRepositoryImpl struct {
	db *gorm.DB
}

func NewQueryRepository(db *gorm.DB) models.QueryRepository {
	return &QueryRepositoryImpl{db: db}
}

// Create inserts a query. A missing parent session surfaces as ErrNotFound.
func (r *QueryRepositoryImpl) Create(ctx context.Context, query *models.Query) error {
	return translate(r.db.WithContext(ctx).Create(query).Error)
}

func (r *QueryRepositoryImpl) GetByID(ctx context.Context, sessionID, id uint) (*models.Query, error) {
	var query models.Query
	err := r.db.WithContext(ctx).
		Where("id = ? AND session_id = ?", id, sessionID).
		First(&query).Error
	if err != nil {
		return nil, translate(err)
	}
	return &query, nil
}

func (r *QueryRepositoryImpl) ListBySession(ctx context.Context, sessionID uint) ([]models.Query, error) {
	var queries []models.Query
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&queries).Error
	return queries, err
}

// RecentBySession returns the last limit queries in chronological order.
func (r *QueryRepositoryImpl) RecentBySession(ctx context.Context, sessionID uint, limit int) ([]models.Query, error) {
	var queries []models.Query
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&queries).Error
	if err != nil {
		return nil, err
	}
	return lo.Reverse(queries), nil
}
