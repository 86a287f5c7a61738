package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/apperror"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/llm"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/repository"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/retrieval"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// historyExchanges is how many earlier exchanges the model sees.
const historyExchanges = 3

type AnswerRequest struct {
	SessionID    uint
	Question     string
	LanguageMode string
	Attachments  []models.Attachment
	Summaries    []llm.AttachmentSummary
}

type QueryTimeouts struct {
	Generation time.Duration
	Retrieval  time.Duration
}

// LegalQueryService answers a question by consulting retrieval and the
// language model in parallel and persisting the merged result.
type LegalQueryService struct {
	repoManager *repository.RepositoryManager
	retriever   retrieval.Retriever
	generator   llm.Generator
	timeouts    QueryTimeouts
	logger      *logrus.Logger
}

func NewLegalQueryService(
	repoManager *repository.RepositoryManager,
	retriever retrieval.Retriever,
	generator llm.Generator,
	timeouts QueryTimeouts,
	logger *logrus.Logger,
) *LegalQueryService {
	return &LegalQueryService{
		repoManager: repoManager,
		retriever:   retriever,
		generator:   generator,
		timeouts:    timeouts,
		logger:      logger,
	}
}

// Answer persists exactly one Query on success. Any collaborator failure
// returns UpstreamUnavailable and writes nothing.
func (s *LegalQueryService) Answer(ctx context.Context, req AnswerRequest) (*models.ChatResponse, error) {
	start := time.Now()
	log := s.logger.WithField("session_id", req.SessionID)

	recent, err := s.repoManager.Query.RecentBySession(ctx, req.SessionID, historyExchanges)
	if err != nil {
		return nil, apperror.Store(err)
	}
	history := lo.Map(recent, func(q models.Query, _ int) llm.Exchange {
		return llm.Exchange{Question: q.Question, Answer: q.Answer}
	})

	var (
		retrieved []models.Source
		answer    *llm.Answer
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rctx, cancel := withTimeout(gctx, s.timeouts.Retrieval)
		defer cancel()

		sources, err := s.retriever.Search(rctx, retrievalQuery(req))
		if err != nil {
			return fmt.Errorf("retrieval: %w", err)
		}
		retrieved = sources
		return nil
	})
	g.Go(func() error {
		lctx, cancel := withTimeout(gctx, s.timeouts.Generation)
		defer cancel()

		a, err := s.generator.Generate(lctx, llm.GenerateRequest{
			Question:     req.Question,
			LanguageMode: req.LanguageMode,
			Attachments:  req.Summaries,
			History:      history,
		})
		if err != nil {
			return fmt.Errorf("generation: %w", err)
		}
		answer = a
		return nil
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Legal research collaborators failed")
		return nil, apperror.Upstream(err, "legal research service unavailable")
	}

	query := &models.Query{
		SessionID:    req.SessionID,
		Question:     req.Question,
		Answer:       answer.Text,
		Sources:      MergeSources(answer.Sources, retrieved),
		Attachments:  models.AttachmentList(req.Attachments),
		LegalContext: legalContext(retrieved),
		LanguageMode: req.LanguageMode,
	}
	query.SetConfidence(&answer.Confidence)

	if err := s.repoManager.Query.Create(ctx, query); err != nil {
		return nil, s.persistError(ctx, req.SessionID, err)
	}

	elapsed := time.Since(start)
	log.WithFields(logrus.Fields{
		"query_id":      query.ID,
		"sources":       len(query.Sources),
		"retrieved":     len(retrieved),
		"fallback":      answer.Fallback,
		"processing_ms": elapsed.Milliseconds(),
	}).Info("Query answered")

	return &models.ChatResponse{
		QueryResponse: models.NewQueryResponse(query),
		Metadata: models.ResponseMetadata{
			ProcessingTimeMs: elapsed.Milliseconds(),
			SourcesUsed:      s.retriever.Corpora(),
			LastUpdated:      query.CreatedAt,
			Fallback:         answer.Fallback,
		},
	}, nil
}

// persistError distinguishes a session deleted mid-request from a store failure.
func (s *LegalQueryService) persistError(ctx context.Context, sessionID uint, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(apperror.CodeSessionNotFound, "session not found")
	}
	if _, getErr := s.repoManager.ChatSession.GetByID(ctx, sessionID); errors.Is(getErr, repository.ErrNotFound) {
		return apperror.NotFound(apperror.CodeSessionNotFound, "session not found")
	}
	return apperror.Store(err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func retrievalQuery(req AnswerRequest) string {
	if req.Question != "" {
		return req.Question
	}
	return strings.Join(lo.Map(req.Attachments, func(a models.Attachment, _ int) string {
		return a.Filename
	}), " ")
}

// MergeSources returns model sources followed by retrieved sources with
// every relevance clamped to [0,1]. Duplicates are kept.
func MergeSources(model, retrieved []models.Source) models.SourceList {
	merged := make(models.SourceList, 0, len(model)+len(retrieved))
	for _, group := range [][]models.Source{model, retrieved} {
		for _, src := range group {
			src.Relevance = models.Clamp01(src.Relevance)
			merged = append(merged, src)
		}
	}
	return merged
}

// legalContext lists the retrieved provisions, one per line.
func legalContext(retrieved []models.Source) *string {
	if len(retrieved) == 0 {
		return nil
	}

	lines := lo.Map(retrieved, func(src models.Source, _ int) string {
		var b strings.Builder
		b.WriteString(src.Title)
		if src.Identifier != "" {
			fmt.Fprintf(&b, " (%s)", src.Identifier)
		}
		if src.Section != "" {
			fmt.Fprintf(&b, " %s", src.Section)
		}
		return b.String()
	})
	text := strings.Join(lines, "\n")
	return &text
}
