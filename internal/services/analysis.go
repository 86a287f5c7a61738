package services

import (
	"context"
	"strings"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/apperror"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/repository"
	"github.com/mattfrans/finnish-legal-assistant-sub000/pkg/utils"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

const timelineQuestionLength = 80

type AnalysisService struct {
	repoManager *repository.RepositoryManager
	logger      *logrus.Logger
}

func NewAnalysisService(repoManager *repository.RepositoryManager, logger *logrus.Logger) *AnalysisService {
	return &AnalysisService{
		repoManager: repoManager,
		logger:      logger,
	}
}

// Analyze summarizes a session: confidence, cited material, feedback and a
// per-query timeline.
func (s *AnalysisService) Analyze(ctx context.Context, sessionID uint) (*models.AnalysisResponse, error) {
	session, err := s.repoManager.ChatSession.GetWithQueries(ctx, sessionID)
	if err != nil {
		return nil, sessionError(err)
	}

	stats, err := s.repoManager.Feedback.StatsBySession(ctx, sessionID)
	if err != nil {
		return nil, apperror.Store(err)
	}

	queries := session.Queries
	allSources := lo.FlatMap(queries, func(q models.Query, _ int) []models.Source {
		return q.Sources
	})

	titles := lo.Uniq(lo.FilterMap(allSources, func(src models.Source, _ int) (string, bool) {
		title := strings.TrimSpace(src.Title)
		return title, title != ""
	}))

	breakdown := lo.CountValuesBy(allSources, func(src models.Source) string {
		if src.Type == "" {
			return string(models.SourceTypeOther)
		}
		return string(src.Type)
	})

	scores := lo.FilterMap(queries, func(q models.Query, _ int) (float64, bool) {
		if q.ConfidenceScore == nil {
			return 0, false
		}
		return *q.ConfidenceScore, true
	})

	timeline := lo.Map(queries, func(q models.Query, _ int) models.TimelineEntry {
		return models.TimelineEntry{
			QueryID:     q.ID,
			Question:    utils.TruncateRunes(q.Question, timelineQuestionLength),
			Confidence:  q.ConfidenceScore,
			SourceCount: len(q.Sources),
			CreatedAt:   q.CreatedAt,
		}
	})

	resp := &models.AnalysisResponse{
		SessionID:       session.ID,
		QueryCount:      len(queries),
		CitedTitles:     titles,
		CorpusBreakdown: breakdown,
		FeedbackCount:   stats.Count,
		Timeline:        timeline,
	}
	if len(scores) > 0 {
		avg := lo.Sum(scores) / float64(len(scores))
		resp.AverageConfidence = &avg
	}
	if stats.Count > 0 {
		avg := stats.AverageRating
		resp.AverageRating = &avg
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"query_count": resp.QueryCount,
	}).Debug("Session analyzed")

	return resp, nil
}
