package services

import (
	"context"
	"math"
	"strings"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/apperror"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/repository"
	"github.com/sirupsen/logrus"
)

type FeedbackService struct {
	repoManager *repository.RepositoryManager
	logger      *logrus.Logger
}

func NewFeedbackService(repoManager *repository.RepositoryManager, logger *logrus.Logger) *FeedbackService {
	return &FeedbackService{
		repoManager: repoManager,
		logger:      logger,
	}
}

// ParseRating accepts only whole JSON numbers between 1 and 5.
func ParseRating(v interface{}) (int, error) {
	n, ok := v.(float64)
	if !ok || n != math.Trunc(n) || n < 1 || n > 5 {
		return 0, apperror.InvalidInput(apperror.CodeInvalidRating, "rating must be an integer between 1 and 5")
	}
	return int(n), nil
}

// ParseHelpful accepts only a JSON boolean.
func ParseHelpful(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, apperror.InvalidInput(apperror.CodeInvalidInput, "helpful must be a boolean")
	}
	return b, nil
}

// Submit records a new feedback row for a query of the session. Each call
// appends; earlier feedback is kept.
func (s *FeedbackService) Submit(ctx context.Context, sessionID, queryID uint, rating int, helpful bool, comment *string) (*models.Feedback, error) {
	if rating < 1 || rating > 5 {
		return nil, apperror.InvalidInput(apperror.CodeInvalidRating, "rating must be an integer between 1 and 5")
	}

	if _, err := s.repoManager.Query.GetByID(ctx, sessionID, queryID); err != nil {
		return nil, storeError(err, apperror.CodeQueryNotFound, "query not found")
	}

	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		if trimmed == "" {
			comment = nil
		} else {
			comment = &trimmed
		}
	}

	feedback := &models.Feedback{
		QueryID: queryID,
		Rating:  rating,
		Helpful: helpful,
		Comment: comment,
	}
	if err := s.repoManager.Feedback.Create(ctx, feedback); err != nil {
		return nil, storeError(err, apperror.CodeQueryNotFound, "query not found")
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"query_id":   queryID,
		"rating":     rating,
		"helpful":    helpful,
	}).Info("Feedback recorded")

	return feedback, nil
}
