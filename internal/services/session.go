package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/apperror"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/llm"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/repository"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/storage"
	"github.com/mattfrans/finnish-legal-assistant-sub000/pkg/utils"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// MaxUploadBytes caps the combined size of the files sent with one message.
const MaxUploadBytes int64 = 5 * 1024 * 1024

// Upload is a file received with a message. Open is only called once the
// aggregate size has been accepted.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type MessageInput struct {
	Question     string
	LanguageMode string
	Uploads      []Upload
}

// Answerer produces and persists the answer to a message.
type Answerer interface {
	Answer(ctx context.Context, req AnswerRequest) (*models.ChatResponse, error)
}

type SessionService struct {
	repoManager *repository.RepositoryManager
	store       storage.Store
	answerer    Answerer
	logger      *logrus.Logger
}

func NewSessionService(
	repoManager *repository.RepositoryManager,
	store storage.Store,
	answerer Answerer,
	logger *logrus.Logger,
) *SessionService {
	return &SessionService{
		repoManager: repoManager,
		store:       store,
		answerer:    answerer,
		logger:      logger,
	}
}

func (s *SessionService) CreateSession(ctx context.Context) (*models.ChatSession, error) {
	session := &models.ChatSession{Title: models.DefaultSessionTitle, Queries: []models.Query{}}
	if err := s.repoManager.ChatSession.Create(ctx, session); err != nil {
		return nil, apperror.Store(err)
	}

	s.logger.WithField("session_id", session.ID).Info("Session created")
	return session, nil
}

func (s *SessionService) ListSessions(ctx context.Context) ([]models.ChatSession, error) {
	sessions, err := s.repoManager.ChatSession.ListWithLatestQuery(ctx)
	if err != nil {
		return nil, apperror.Store(err)
	}
	return sessions, nil
}

func (s *SessionService) GetSession(ctx context.Context, id uint) (*models.ChatSession, error) {
	session, err := s.repoManager.ChatSession.GetWithQueries(ctx, id)
	if err != nil {
		return nil, sessionError(err)
	}
	return session, nil
}

func (s *SessionService) RenameSession(ctx context.Context, id uint, title string) (*models.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.InvalidInput(apperror.CodeInvalidTitle, "title must not be empty")
	}
	if utf8.RuneCountInString(title) > 255 {
		return nil, apperror.InvalidInput(apperror.CodeInvalidTitle, "title must be at most 255 characters")
	}

	session, err := s.repoManager.ChatSession.UpdateTitle(ctx, id, title)
	if err != nil {
		return nil, sessionError(err)
	}
	return session, nil
}

func (s *SessionService) TogglePin(ctx context.Context, id uint, pinned bool) (*models.ChatSession, error) {
	session, err := s.repoManager.ChatSession.UpdatePinned(ctx, id, pinned)
	if err != nil {
		return nil, sessionError(err)
	}
	return session, nil
}

func (s *SessionService) DeleteSession(ctx context.Context, id uint) error {
	if err := s.repoManager.ChatSession.Delete(ctx, id); err != nil {
		return sessionError(err)
	}

	s.logger.WithField("session_id", id).Info("Session deleted")
	return nil
}

// AddMessage validates a message, titles a fresh session after its first
// question, stores the attachments and hands the message to the answerer.
// The title is committed before answer generation starts.
func (s *SessionService) AddMessage(ctx context.Context, sessionID uint, in MessageInput) (*models.ChatResponse, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" && len(in.Uploads) == 0 {
		return nil, apperror.InvalidInput(apperror.CodeEmptyQuestion, "question must not be empty without attachments")
	}

	total := lo.SumBy(in.Uploads, func(u Upload) int64 { return u.Size })
	if total > MaxUploadBytes {
		return nil, apperror.InvalidInput(apperror.CodeUploadTooLarge, "attachments exceed the 5 MiB limit").
			WithDetails(map[string]int64{"limit": MaxUploadBytes, "size": total})
	}

	if _, err := s.repoManager.ChatSession.GetByID(ctx, sessionID); err != nil {
		return nil, sessionError(err)
	}

	payloads, err := readUploads(in.Uploads)
	if err != nil {
		return nil, err
	}

	if title := firstMessageTitle(question, in.Uploads); title != "" {
		updated, err := s.repoManager.ChatSession.SetTitleIfNoQueries(ctx, sessionID, title)
		if err != nil {
			return nil, apperror.Store(err)
		}
		if updated {
			s.logger.WithFields(logrus.Fields{
				"session_id": sessionID,
				"title":      title,
			}).Debug("Session titled from first message")
		}
	}

	attachments, summaries, err := s.saveUploads(ctx, in.Uploads, payloads)
	if err != nil {
		return nil, err
	}

	return s.answerer.Answer(ctx, AnswerRequest{
		SessionID:    sessionID,
		Question:     question,
		LanguageMode: in.LanguageMode,
		Attachments:  attachments,
		Summaries:    summaries,
	})
}

func firstMessageTitle(question string, uploads []Upload) string {
	if question != "" {
		return utils.TruncateTitle(question)
	}
	if len(uploads) > 0 && uploads[0].Filename != "" {
		return utils.TruncateTitle(uploads[0].Filename)
	}
	return ""
}

const maxSummaryText = 16 * 1024

var errUploadTooLarge = errors.New("attachment exceeds upload limit")

func (s *SessionService) saveUploads(ctx context.Context, uploads []Upload, payloads [][]byte) ([]models.Attachment, []llm.AttachmentSummary, error) {
	attachments := make([]models.Attachment, 0, len(uploads))
	summaries := make([]llm.AttachmentSummary, 0, len(uploads))

	for i, u := range uploads {
		data := payloads[i]
		contentType := u.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		url, err := s.store.Save(ctx, u.Filename, contentType, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, nil, apperror.Store(err)
		}

		kind := models.AttachmentKindFor(contentType)
		attachments = append(attachments, models.Attachment{
			Kind:        kind,
			Filename:    u.Filename,
			URL:         url,
			ContentType: contentType,
			Size:        int64(len(data)),
		})

		summary := llm.AttachmentSummary{Filename: u.Filename, Kind: kind, Size: int64(len(data))}
		if isPlainText(contentType) && utf8.Valid(data) {
			summary.Text = utils.TruncateRunes(string(data), maxSummaryText)
		}
		summaries = append(summaries, summary)
	}

	return attachments, summaries, nil
}

// readUploads reads every upload against one MaxUploadBytes budget shared by
// the whole message, so understated size headers cannot bypass the limit.
func readUploads(uploads []Upload) ([][]byte, error) {
	payloads := make([][]byte, 0, len(uploads))
	remaining := int64(MaxUploadBytes)

	for _, u := range uploads {
		data, err := readUpload(u, remaining)
		if errors.Is(err, errUploadTooLarge) {
			return nil, apperror.InvalidInput(apperror.CodeUploadTooLarge, "attachments exceed the 5 MiB limit")
		}
		if err != nil {
			return nil, apperror.Wrap(err, apperror.KindInvalidInput, apperror.CodeInvalidInput,
				fmt.Sprintf("could not read attachment %q", u.Filename))
		}
		remaining -= int64(len(data))
		payloads = append(payloads, data)
	}
	return payloads, nil
}

func readUpload(u Upload, budget int64) ([]byte, error) {
	rc, err := u.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, budget+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > budget {
		return nil, errUploadTooLarge
	}
	return data, nil
}

func isPlainText(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") || strings.HasPrefix(ct, "application/json")
}
