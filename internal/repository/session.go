package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("record not found")

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return ErrNotFound
	}
	return err
}

// ChatSessionRepositoryImpl implements ChatSessionRepository
type ChatSessionRepositoryImpl struct {
	db *gorm.DB
}

func NewChatSessionRepository(db *gorm.DB) models.ChatSessionRepository {
	return &ChatSessionRepositoryImpl{db: db}
}

func (r *ChatSessionRepositoryImpl) Create(ctx context.Context, session *models.ChatSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *ChatSessionRepositoryImpl) GetByID(ctx context.Context, id uint) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (r *ChatSessionRepositoryImpl) GetWithQueries(ctx context.Context, id uint) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.WithContext(ctx).
		Preload("Queries", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		First(&session, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// ListWithLatestQuery returns every session newest first, each carrying at
// most its most recent query.
func (r *ChatSessionRepositoryImpl) ListWithLatestQuery(ctx context.Context) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&sessions).Error
	if err != nil || len(sessions) == 0 {
		return sessions, err
	}

	ids := lo.Map(sessions, func(s models.ChatSession, _ int) uint { return s.ID })
	latestIDs := r.db.Model(&models.Query{}).
		Select("MAX(id)").
		Where("session_id IN ?", ids).
		Group("session_id")

	var latest []models.Query
	if err := r.db.WithContext(ctx).Where("id IN (?)", latestIDs).Find(&latest).Error; err != nil {
		return nil, err
	}

	bySession := lo.KeyBy(latest, func(q models.Query) uint { return q.SessionID })
	for i := range sessions {
		sessions[i].Queries = []models.Query{}
		if q, ok := bySession[sessions[i].ID]; ok {
			sessions[i].Queries = append(sessions[i].Queries, q)
		}
	}
	return sessions, nil
}

func (r *ChatSessionRepositoryImpl) UpdateTitle(ctx context.Context, id uint, title string) (*models.ChatSession, error) {
	return r.update(ctx, id, map[string]interface{}{
		"title":      title,
		"updated_at": time.Now(),
	})
}

func (r *ChatSessionRepositoryImpl) UpdatePinned(ctx context.Context, id uint, pinned bool) (*models.ChatSession, error) {
	return r.update(ctx, id, map[string]interface{}{
		"is_pinned":  pinned,
		"updated_at": time.Now(),
	})
}

func (r *ChatSessionRepositoryImpl) update(ctx context.Context, id uint, values map[string]interface{}) (*models.ChatSession, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// SetTitleIfNoQueries replaces the title only while the session owns no
// queries, whatever the current title is. It reports whether the row was
// updated.
func (r *ChatSessionRepositoryImpl) SetTitleIfNoQueries(ctx context.Context, id uint, title string) (bool, error) {
	hasQueries := r.db.Model(&models.Query{}).Select("1").Where("session_id = ?", id)

	res := r.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("id = ?", id).
		Where("NOT EXISTS (?)", hasQueries).
		Updates(map[string]interface{}{
			"title":      title,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ChatSessionRepositoryImpl) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.ChatSession{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
