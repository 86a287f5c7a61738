package repository

import (
	"context"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"gorm.io/gorm"
)

// FeedbackRepositoryImpl implements FeedbackRepository
type FeedbackRepositoryImpl struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) models.FeedbackRepository {
	return &FeedbackRepositoryImpl{db: db}
}

func (r *FeedbackRepositoryImpl) Create(ctx context.Context, feedback *models.Feedback) error {
	return translate(r.db.WithContext(ctx).Create(feedback).Error)
}

func (r *FeedbackRepositoryImpl) ListByQuery(ctx context.Context, queryID uint) ([]models.Feedback, error) {
	var feedback []models.Feedback
	err := r.db.WithContext(ctx).
		Where("query_id = ?", queryID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&feedback).Error
	return feedback, err
}

func (r *FeedbackRepositoryImpl) StatsBySession(ctx context.Context, sessionID uint) (*models.FeedbackStats, error) {
	var row struct {
		Count         int64
		AverageRating *float64
		HelpfulCount  int64
	}

	err := r.db.WithContext(ctx).
		Model(&models.Feedback{}).
		Select(`COUNT(feedback.id) AS count,
			AVG(CAST(feedback.rating AS FLOAT)) AS average_rating,
			COALESCE(SUM(CASE WHEN feedback.helpful THEN 1 ELSE 0 END), 0) AS helpful_count`).
		Joins("JOIN queries ON queries.id = feedback.query_id").
		Where("queries.session_id = ?", sessionID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats := &models.FeedbackStats{Count: row.Count, HelpfulCount: row.HelpfulCount}
	if row.AverageRating != nil {
		stats.AverageRating = *row.AverageRating
	}
	return stats, nil
}
