package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/apperror"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/middleware"
	"github.com/mattfrans/finnish-legal-assistant-sub000/pkg/utils"
	"github.com/sirupsen/logrus"
)

func parseID(c *gin.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.InvalidInput(apperror.CodeInvalidInput, "invalid "+param)
	}
	return uint(id), nil
}

// respondError logs err at a level matching its kind and writes the envelope.
func respondError(c *gin.Context, logger *logrus.Logger, err error, msg string) {
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"request_id": c.GetString(middleware.RequestIDKey),
	})

	switch apperror.KindOf(err) {
	case apperror.KindInvalidInput, apperror.KindNotFound:
		entry.Debug(msg)
	case apperror.KindUpstreamUnavailable:
		entry.Warn(msg)
	default:
		entry.Error(msg)
	}

	_ = c.Error(err)
	utils.ErrorResponse(c, err)
}
