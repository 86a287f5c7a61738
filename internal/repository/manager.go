package repository

import (
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"gorm.io/gorm"
)

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	ChatSession   models.ChatSessionRepository
	Query         models.QueryRepository
	Feedback      models.FeedbackRepository
	LegalDocument models.LegalDocumentRepository
	SystemHealth  models.SystemHealthRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		ChatSession:   NewChatSessionRepository(db),
		Query:         NewQueryRepository(db),
		Feedback:      NewFeedbackRepository(db),
		LegalDocument: NewLegalDocumentRepository(db),
		SystemHealth:  NewSystemHealthRepository(db),
	}
}
