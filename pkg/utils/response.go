package utils

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/apperror"
)

// ErrorBody is the envelope written for every failed request.
type ErrorBody struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse writes err as an error envelope. Errors that are not
// *apperror.Error are reported as internal without leaking their text.
func ErrorResponse(c *gin.Context, err error) {
	c.JSON(ErrorStatus(err), ErrorEnvelope(err))
}

// AbortWithError writes the envelope and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(ErrorStatus(err), ErrorEnvelope(err))
}

func ErrorStatus(err error) int {
	return apperror.HTTPStatus(apperror.KindOf(err))
}

func ErrorEnvelope(err error) ErrorBody {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		return ErrorBody{Error: "internal server error", Code: apperror.CodeInternal}
	}

	body := ErrorBody{Error: appErr.Message, Code: appErr.Code, Details: appErr.Details}
	if body.Code == "" {
		body.Code = apperror.CodeInternal
	}
	return body
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}
