package repository

import (
	"context"
	"errors"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// LegalDocumentRepositoryImpl implements LegalDocumentRepository
type LegalDocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewLegalDocumentRepository(db *gorm.DB) models.LegalDocumentRepository {
	return &LegalDocumentRepositoryImpl{db: db}
}

// Upsert stores doc keyed by its identifier and replaces all of its sections.
func (r *LegalDocumentRepositoryImpl) Upsert(ctx context.Context, doc *models.LegalDocument) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.LegalDocument
		err := tx.Where("identifier = ?", doc.Identifier).First(&existing).Error

		switch {
		case err == nil:
			doc.ID = existing.ID
			doc.CreatedAt = existing.CreatedAt
			if err := tx.Where("document_id = ?", existing.ID).Delete(&models.DocumentSection{}).Error; err != nil {
				return err
			}
			if err := tx.Omit("Sections").Save(doc).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Omit("Sections").Create(doc).Error; err != nil {
				return err
			}
		default:
			return err
		}

		if len(doc.Sections) == 0 {
			return nil
		}
		for i := range doc.Sections {
			doc.Sections[i].ID = 0
			doc.Sections[i].DocumentID = doc.ID
		}
		return tx.Create(&doc.Sections).Error
	})
}

func (r *LegalDocumentRepositoryImpl) GetByIdentifier(ctx context.Context, identifier string) (*models.LegalDocument, error) {
	var doc models.LegalDocument
	err := r.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("section_order ASC")
		}).
		Where("identifier = ?", identifier).
		First(&doc).Error
	if err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

// SearchSections returns the sections nearest to embedding by cosine
// distance, limited to documents of the given types that are still in force.
func (r *LegalDocumentRepositoryImpl) SearchSections(ctx context.Context, embedding []float32, types []models.DocumentType, limit int) ([]models.SectionMatch, error) {
	var matches []models.SectionMatch
	err := r.db.WithContext(ctx).Raw(`
		SELECT s.id AS section_id, s.section_number, s.title AS section_title, s.content,
			d.title AS document_title, d.identifier, d.source_url, d.type,
			s.embedding <=> ? AS distance
		FROM document_sections s
		JOIN legal_documents d ON d.id = s.document_id
		WHERE s.embedding IS NOT NULL
			AND d.type IN ?
			AND (d.effective_to IS NULL OR d.effective_to > NOW())
		ORDER BY distance
		LIMIT ?
	`, pgvector.NewVector(embedding), types, limit).Scan(&matches).Error
	return matches, err
}
