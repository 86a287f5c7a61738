package seeder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/llm"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/repository"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	maxChunkRunes = 2000
	embedBatch    = 32
)

// SourcePage is one statute or guideline page to index.
type SourcePage struct {
	Identifier string
	Title      string
	URL        string
	Type       models.DocumentType
	Priority   int
}

// DefaultPages lists the consumer-law sources indexed out of the box.
var DefaultPages = []SourcePage{
	{Identifier: "1978/38", Title: "Kuluttajansuojalaki", URL: "https://www.finlex.fi/fi/laki/ajantasa/1978/19780038", Type: models.DocumentStatute, Priority: 10},
	{Identifier: "1995/481", Title: "Laki asuinhuoneiston vuokrauksesta", URL: "https://www.finlex.fi/fi/laki/ajantasa/1995/19950481", Type: models.DocumentStatute, Priority: 9},
	{Identifier: "2001/55", Title: "Työsopimuslaki", URL: "https://www.finlex.fi/fi/laki/ajantasa/2001/20010055", Type: models.DocumentStatute, Priority: 8},
	{Identifier: "1987/355", Title: "Kauppalaki", URL: "https://www.finlex.fi/fi/laki/ajantasa/1987/19870355", Type: models.DocumentStatute, Priority: 7},
	{Identifier: "2007/1026", Title: "Kuluttajansuojalain muuttamisesta", URL: "https://www.finlex.fi/fi/laki/alkup/2007/20071026", Type: models.DocumentStatute, Priority: 4},
	{Identifier: "kkv-verkkokauppa", Title: "KKV: Verkkokaupan ehdot", URL: "https://www.kkv.fi/kuluttaja-asiat/tietoa-ja-ohjeita-yrityksille/verkkokauppa/", Type: models.DocumentGuideline, Priority: 6},
	{Identifier: "kkv-virheellinen-tuote", Title: "KKV: Virheellinen tuote", URL: "https://www.kkv.fi/kuluttaja-asiat/tietoa-ja-ohjeita-kuluttajille/virheellinen-tuote/", Type: models.DocumentGuideline, Priority: 6},
	{Identifier: "kkv-peruuttamisoikeus", Title: "KKV: Peruuttamisoikeus", URL: "https://www.kkv.fi/kuluttaja-asiat/tietoa-ja-ohjeita-kuluttajille/peruuttamisoikeus/", Type: models.DocumentGuideline, Priority: 5},
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// DocumentStore persists documents. repository.LegalDocumentRepositoryImpl
// implements it.
type DocumentStore interface {
	Upsert(ctx context.Context, doc *models.LegalDocument) error
	GetByIdentifier(ctx context.Context, identifier string) (*models.LegalDocument, error)
}

// Report summarizes one seeding run.
type Report struct {
	Processed int
	Unchanged int
	Errors    []error
}

// Seeder crawls source pages, splits them into sections, embeds the
// sections and stores them for vector retrieval.
type Seeder struct {
	fetcher   Fetcher
	processor *ContentProcessor
	embedder  llm.Embedder
	store     DocumentStore
	logger    *logrus.Logger
	dryRun    bool
}

// NewSeeder builds a seeder. embedder and store may be nil when dryRun is set.
func NewSeeder(fetcher Fetcher, embedder llm.Embedder, store DocumentStore, dryRun bool, logger *logrus.Logger) *Seeder {
	return &Seeder{
		fetcher:   fetcher,
		processor: NewContentProcessor(),
		embedder:  embedder,
		store:     store,
		logger:    logger,
		dryRun:    dryRun,
	}
}

// Run seeds pages in descending priority. limit caps the number of pages
// when positive. A failing page is recorded and does not stop the run.
func (s *Seeder) Run(ctx context.Context, pages []SourcePage, limit int) (*Report, error) {
	ordered := make([]SourcePage, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	if limit > 0 && limit < len(ordered) {
		ordered = ordered[:limit]
	}

	report := &Report{}
	for i, page := range ordered {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		log := s.logger.WithFields(logrus.Fields{
			"document": page.Identifier,
			"progress": fmt.Sprintf("%d/%d", i+1, len(ordered)),
		})
		log.Info("Processing document")

		changed, err := s.seedPage(ctx, page)
		switch {
		case err != nil:
			log.WithError(err).Error("Failed to process document")
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", page.Identifier, err))
		case !changed:
			log.Info("Document unchanged")
			report.Unchanged++
		default:
			report.Processed++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"processed": report.Processed,
		"unchanged": report.Unchanged,
		"errors":    len(report.Errors),
	}).Info("Seeding completed")

	return report, nil
}

func (s *Seeder) seedPage(ctx context.Context, page SourcePage) (bool, error) {
	fetched, err := s.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		return false, err
	}

	text := s.processor.CleanContent(fetched.Text)
	if text == "" {
		return false, errors.New("page has no text")
	}
	hash := ContentHash(text)

	if s.store != nil {
		existing, err := s.store.GetByIdentifier(ctx, page.Identifier)
		switch {
		case err == nil && existing.ContentHash == hash:
			return false, nil
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return false, fmt.Errorf("failed to load existing document: %w", err)
		}
	}

	doc := s.BuildDocument(page, fetched.Title, text)

	if s.dryRun {
		s.logger.WithFields(logrus.Fields{
			"document":       page.Identifier,
			"title":          doc.Title,
			"content_length": len(text),
			"sections":       len(doc.Sections),
			"hash":           hash[:8],
		}).Info("DRY RUN: would embed and store document")
		return true, nil
	}

	if err := s.embedSections(ctx, doc); err != nil {
		return false, err
	}
	if err := s.store.Upsert(ctx, doc); err != nil {
		return false, fmt.Errorf("failed to store document: %w", err)
	}
	return true, nil
}

// BuildDocument turns cleaned page text into a document with ordered
// sections. Long sections are split into several rows that share a number.
func (s *Seeder) BuildDocument(page SourcePage, fetchedTitle, text string) *models.LegalDocument {
	title := page.Title
	if title == "" {
		title = fetchedTitle
	}

	var sections []models.DocumentSection
	for _, section := range s.processor.SplitSections(text) {
		for _, chunk := range s.processor.SplitIntoChunks(section.Content, maxChunkRunes) {
			sections = append(sections, models.DocumentSection{
				SectionNumber: section.Number,
				Title:         section.Title,
				Content:       chunk,
				SectionOrder:  len(sections),
			})
		}
	}

	return &models.LegalDocument{
		Identifier:  page.Identifier,
		Title:       title,
		Content:     text,
		Type:        page.Type,
		SourceURL:   page.URL,
		ContentHash: ContentHash(text),
		Metadata: datatypes.NewJSONType(models.DocumentMetadata{
			Category:   s.processor.Category(title),
			Amendments: s.processor.ExtractAmendments(text, page.Identifier),
		}),
		Sections: sections,
	}
}

func (s *Seeder) embedSections(ctx context.Context, doc *models.LegalDocument) error {
	for start := 0; start < len(doc.Sections); start += embedBatch {
		end := start + embedBatch
		if end > len(doc.Sections) {
			end = len(doc.Sections)
		}

		inputs := make([]string, 0, end-start)
		for _, section := range doc.Sections[start:end] {
			inputs = append(inputs, embeddingInput(doc.Title, section))
		}

		vectors, err := s.embedder.Embed(ctx, inputs)
		if err != nil {
			return fmt.Errorf("failed to embed sections: %w", err)
		}
		if len(vectors) != len(inputs) {
			return fmt.Errorf("embedder returned %d vectors for %d sections", len(vectors), len(inputs))
		}

		for i, vec := range vectors {
			v := pgvector.NewVector(vec)
			doc.Sections[start+i].Embedding = &v
		}
	}
	return nil
}

func embeddingInput(docTitle string, section models.DocumentSection) string {
	header := strings.TrimSpace(strings.Join([]string{docTitle, section.SectionNumber, section.Title}, " "))
	return header + "\n" + section.Content
}
