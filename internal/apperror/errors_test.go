package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_WrappedError(t *testing.T) {
	base := NotFound(CodeSessionNotFound, "session not found")
	wrapped := fmt.Errorf("loading session: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(nil, KindNotFound))
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidInput:         http.StatusBadRequest,
		KindNotFound:             http.StatusNotFound,
		KindAuthRequired:         http.StatusUnauthorized,
		KindSubscriptionRequired: http.StatusForbidden,
		KindRateLimited:          http.StatusTooManyRequests,
		KindUpstreamUnavailable:  http.StatusBadGateway,
		KindStoreUnavailable:     http.StatusInternalServerError,
		KindInternal:             http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, HTTPStatus(kind), kind.String())
	}
}

func TestError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Upstream(cause, "answer generation failed")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "answer generation failed: dial tcp: timeout", err.Error())
	assert.Equal(t, CodeUpstreamUnavailable, err.Code)
}

func TestError_WithDetails(t *testing.T) {
	base := InvalidInput(CodeUploadTooLarge, "attachments too large")
	detailed := base.WithDetails(map[string]int64{"limit": 10})

	assert.Nil(t, base.Details)
	assert.NotNil(t, detailed.Details)
	assert.Equal(t, base.Code, detailed.Code)
}
