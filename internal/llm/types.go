package llm

import (
	"context"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
)

// Generator produces an answer for a legal question.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Answer, error)
}

// Embedder turns texts into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type GenerateRequest struct {
	Question     string
	LanguageMode string
	Attachments  []AttachmentSummary
	History      []Exchange
}

// AttachmentSummary is what the model sees of an uploaded file.
type AttachmentSummary struct {
	Filename string
	Kind     models.AttachmentKind
	Size     int64
	Text     string
}

// Exchange is an earlier question and answer in the same session.
type Exchange struct {
	Question string
	Answer   string
}

type Answer struct {
	Text       string
	Confidence models.Confidence
	Sources    []models.Source
	// Fallback is set when the model reply failed validation and Text is
	// the raw reply.
	Fallback bool
}
