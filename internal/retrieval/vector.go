package retrieval

import (
	"context"
	"fmt"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/llm"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// SectionSearcher is the part of the document store used for vector search.
type SectionSearcher interface {
	SearchSections(ctx context.Context, embedding []float32, types []models.DocumentType, limit int) ([]models.SectionMatch, error)
}

// VectorRetriever embeds the question and searches stored legal sections by
// cosine distance, once per corpus.
type VectorRetriever struct {
	embedder llm.Embedder
	sections SectionSearcher
	topK     int
	corpora  []models.SourceType
	logger   *logrus.Logger
}

func NewVectorRetriever(embedder llm.Embedder, sections SectionSearcher, topK int, logger *logrus.Logger) *VectorRetriever {
	return &VectorRetriever{
		embedder: embedder,
		sections: sections,
		topK:     topK,
		corpora:  DefaultCorpora,
		logger:   logger,
	}
}

func (v *VectorRetriever) Corpora() []models.SourceType {
	return v.corpora
}

func (v *VectorRetriever) Search(ctx context.Context, query string) ([]models.Source, error) {
	vectors, err := v.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one query embedding, got %d", len(vectors))
	}

	var sources []models.Source
	for _, corpus := range v.corpora {
		matches, err := v.sections.SearchSections(ctx, vectors[0], models.DocumentTypesFor(corpus), v.topK)
		if err != nil {
			return nil, fmt.Errorf("section search for %s failed: %w", corpus, err)
		}
		sources = append(sources, lo.Map(matches, func(m models.SectionMatch, _ int) models.Source {
			return sourceFromMatch(m)
		})...)
	}

	v.logger.WithFields(logrus.Fields{
		"results": len(sources),
		"corpora": v.corpora,
	}).Debug("Vector retrieval completed")

	if sources == nil {
		sources = []models.Source{}
	}
	return sources, nil
}

func sourceFromMatch(m models.SectionMatch) models.Source {
	title := m.DocumentTitle
	if m.SectionTitle != "" {
		title = fmt.Sprintf("%s: %s", m.DocumentTitle, m.SectionTitle)
	}
	return models.Source{
		Link:       m.SourceURL,
		Title:      title,
		Section:    m.SectionNumber,
		Type:       m.Type.Corpus(),
		Identifier: m.Identifier,
		Relevance:  models.Clamp01(1 - m.Distance),
	}
}

// groupByCorpus orders sources corpus by corpus, most relevant first within
// each. Sources from other corpora keep their place at the end.
func groupByCorpus(sources []models.Source, corpora []models.SourceType) []models.Source {
	grouped := make([]models.Source, 0, len(sources))
	for _, corpus := range corpora {
		grouped = append(grouped, models.SortByRelevance(lo.Filter(sources, func(s models.Source, _ int) bool {
			return s.Type == corpus
		}))...)
	}
	rest := lo.Filter(sources, func(s models.Source, _ int) bool {
		return !lo.Contains(corpora, s.Type)
	})
	return append(grouped, models.SortByRelevance(rest)...)
}
