package services

import (
	"errors"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/apperror"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/repository"
)

// storeError maps a repository error to an application error, reporting
// missing rows with the given code.
func storeError(err error, notFoundCode, notFoundMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(notFoundCode, notFoundMsg)
	}
	return apperror.Store(err)
}

func sessionError(err error) error {
	return storeError(err, apperror.CodeSessionNotFound, "session not found")
}
