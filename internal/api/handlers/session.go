package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/apperror"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/services"
	"github.com/mattfrans/finnish-legal-assistant-sub000/pkg/utils"
	"github.com/sirupsen/logrus"
)

// multipartOverhead leaves room for form fields and part headers on top of
// the attachment limit.
const multipartOverhead = 1 << 20

type SessionHandler struct {
	sessionService *services.SessionService
	logger         *logrus.Logger
}

func NewSessionHandler(sessionService *services.SessionService, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		logger:         logger,
	}
}

// HandleCreate creates an empty session
func (h *SessionHandler) HandleCreate(c *gin.Context) {
	session, err := h.sessionService.CreateSession(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to create session")
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, models.NewSessionResponse(session))
}

// HandleList lists sessions with their latest query
func (h *SessionHandler) HandleList(c *gin.Context) {
	sessions, err := h.sessionService.ListSessions(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to list sessions")
		return
	}

	resp := make([]models.SessionResponse, 0, len(sessions))
	for i := range sessions {
		resp = append(resp, models.NewSessionResponse(&sessions[i]))
	}
	utils.SuccessResponse(c, http.StatusOK, resp)
}

func (h *SessionHandler) HandleGet(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.logger, err, "Invalid session id")
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to load session")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, models.NewSessionResponse(session))
}

func (h *SessionHandler) HandleRename(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.logger, err, "Invalid session id")
		return
	}

	var req models.RenameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperror.InvalidInput(apperror.CodeInvalidInput, "invalid request body"), "Invalid rename request")
		return
	}

	session, err := h.sessionService.RenameSession(c.Request.Context(), id, req.Title)
	if err != nil {
		respondError(c, h.logger, err, "Failed to rename session")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, models.NewSessionResponse(session))
}

func (h *SessionHandler) HandlePin(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.logger, err, "Invalid session id")
		return
	}

	var req models.PinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperror.InvalidInput(apperror.CodeInvalidInput, "isPinned must be a boolean"), "Invalid pin request")
		return
	}

	session, err := h.sessionService.TogglePin(c.Request.Context(), id, *req.IsPinned)
	if err != nil {
		respondError(c, h.logger, err, "Failed to pin session")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, models.NewSessionResponse(session))
}

func (h *SessionHandler) HandleDelete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.logger, err, "Invalid session id")
		return
	}

	if err := h.sessionService.DeleteSession(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err, "Failed to delete session")
		return
	}
	c.Status(http.StatusNoContent)
}

type chatJSONRequest struct {
	Question     string `json:"question"`
	LanguageMode string `json:"languageMode"`
}

// HandleChat accepts a question as multipart form data with optional
// files, or as a JSON body without files.
func (h *SessionHandler) HandleChat(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.logger, err, "Invalid session id")
		return
	}

	input, err := h.readMessage(c)
	if err != nil {
		respondError(c, h.logger, err, "Invalid chat request")
		return
	}

	resp, err := h.sessionService.AddMessage(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, h.logger, err, "Failed to answer question")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, resp)
}

func (h *SessionHandler) readMessage(c *gin.Context) (services.MessageInput, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req chatJSONRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return services.MessageInput{}, apperror.InvalidInput(apperror.CodeInvalidInput, "invalid request body")
		}
		return services.MessageInput{Question: req.Question, LanguageMode: req.LanguageMode}, nil
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxUploadBytes+multipartOverhead)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.MessageInput{}, apperror.InvalidInput(apperror.CodeUploadTooLarge, "attachments exceed the 5 MiB limit")
		}
		return services.MessageInput{}, apperror.InvalidInput(apperror.CodeInvalidInput, "invalid multipart form")
	}

	input := services.MessageInput{
		Question:     firstValue(form.Value["question"]),
		LanguageMode: firstValue(form.Value["languageMode"]),
	}
	for _, field := range []string{"files", "files[]"} {
		for _, fh := range form.File[field] {
			input.Uploads = append(input.Uploads, uploadFromHeader(fh))
		}
	}
	return input, nil
}

func uploadFromHeader(fh *multipart.FileHeader) services.Upload {
	return services.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
