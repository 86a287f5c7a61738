package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/apperror"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/services"
	"github.com/mattfrans/finnish-legal-assistant-sub000/pkg/utils"
	"github.com/sirupsen/logrus"
)

type FeedbackHandler struct {
	feedbackService *services.FeedbackService
	analysisService *services.AnalysisService
	logger          *logrus.Logger
}

func NewFeedbackHandler(feedbackService *services.FeedbackService, analysisService *services.AnalysisService, logger *logrus.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		feedbackService: feedbackService,
		analysisService: analysisService,
		logger:          logger,
	}
}

// HandleFeedback records a rating for one answer
func (h *FeedbackHandler) HandleFeedback(c *gin.Context) {
	sessionID, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.logger, err, "Invalid session id")
		return
	}
	queryID, err := parseID(c, "queryId")
	if err != nil {
		respondError(c, h.logger, err, "Invalid query id")
		return
	}

	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperror.InvalidInput(apperror.CodeInvalidInput, "invalid request body"), "Invalid feedback request")
		return
	}

	rating, err := services.ParseRating(req.Rating)
	if err != nil {
		respondError(c, h.logger, err, "Invalid feedback rating")
		return
	}
	helpful, err := services.ParseHelpful(req.Helpful)
	if err != nil {
		respondError(c, h.logger, err, "Invalid feedback flag")
		return
	}

	feedback, err := h.feedbackService.Submit(c.Request.Context(), sessionID, queryID, rating, helpful, req.Comment)
	if err != nil {
		respondError(c, h.logger, err, "Failed to record feedback")
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, models.NewFeedbackResponse(feedback))
}

// HandleAnalysis returns aggregate statistics for a session
func (h *FeedbackHandler) HandleAnalysis(c *gin.Context) {
	sessionID, err := parseID(c, "id")
	if err != nil {
		respondError(c, h.logger, err, "Invalid session id")
		return
	}

	analysis, err := h.analysisService.Analyze(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to analyze session")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, analysis)
}
