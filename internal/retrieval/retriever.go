package retrieval

import (
	"context"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
)

// Retriever finds legal sources relevant to a question.
type Retriever interface {
	// Search returns candidates grouped by corpus, most relevant first
	// within each corpus.
	Search(ctx context.Context, query string) ([]models.Source, error)
	// Corpora lists the corpora this retriever consults.
	Corpora() []models.SourceType
}

// DefaultCorpora are the corpora searched when none are configured.
var DefaultCorpora = []models.SourceType{models.SourceTypeFinlex, models.SourceTypeKKV}
