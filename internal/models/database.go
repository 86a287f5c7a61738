package models

// GORM models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultSessionTitle = "New Chat"
	EmbeddingDimensions = 1536
)

// Base model with common fields
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatSession is a conversation thread owning its queries
type ChatSession struct {
	BaseModel
	Title    string `json:"title" gorm:"type:varchar(255);not null"`
	IsPinned bool   `json:"isPinned" gorm:"not null"`

	// Associations
	Queries []Query `json:"queries" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// Query is one question/answer exchange within a session
type Query struct {
	ID                  uint           `json:"id" gorm:"primaryKey"`
	SessionID           uint           `json:"sessionId" gorm:"not null;index"`
	Question            string         `json:"question" gorm:"type:text;not null"`
	Answer              string         `json:"answer" gorm:"type:text;not null"`
	Sources             SourceList     `json:"sources" gorm:"type:jsonb;not null;default:'[]'"`
	Attachments         AttachmentList `json:"attachments" gorm:"type:jsonb;not null;default:'[]'"`
	LegalContext        *string        `json:"legalContext,omitempty" gorm:"type:text"`
	ConfidenceScore     *float64       `json:"-"`
	ConfidenceReasoning string         `json:"-" gorm:"type:text"`
	LanguageMode        string         `json:"languageMode" gorm:"type:varchar(16)"`
	CreatedAt           time.Time      `json:"createdAt" gorm:"index"`

	// Associations
	Feedback []Feedback `json:"-" gorm:"foreignKey:QueryID;constraint:OnDelete:CASCADE"`
}

// Confidence returns the embedded confidence record, if any.
func (q *Query) Confidence() *Confidence {
	if q.ConfidenceScore == nil {
		return nil
	}
	return &Confidence{Score: *q.ConfidenceScore, Reasoning: q.ConfidenceReasoning}
}

// SetConfidence stores c with its score clamped to [0,1].
func (q *Query) SetConfidence(c *Confidence) {
	if c == nil {
		q.ConfidenceScore = nil
		q.ConfidenceReasoning = ""
		return
	}
	score := Clamp01(c.Score)
	q.ConfidenceScore = &score
	q.ConfidenceReasoning = c.Reasoning
}

// Feedback is a user rating recorded against a query
type Feedback struct {
	BaseModel
	QueryID uint    `json:"queryId" gorm:"not null;index"`
	Rating  int     `json:"rating" gorm:"not null;check:rating BETWEEN 1 AND 5"`
	Helpful bool    `json:"helpful" gorm:"not null"`
	Comment *string `json:"comment,omitempty" gorm:"type:text"`
}

// DocumentMetadata holds free-form attributes of a legal document
type DocumentMetadata struct {
	Category   string   `json:"category,omitempty"`
	Ministry   string   `json:"ministry,omitempty"`
	Amendments []string `json:"amendments,omitempty"`
}

// LegalDocument is a statute, court decision or guideline used for retrieval
type LegalDocument struct {
	BaseModel
	Identifier    string                               `json:"identifier" gorm:"type:varchar(128);uniqueIndex;not null"`
	Title         string                               `json:"title" gorm:"not null"`
	Content       string                               `json:"content" gorm:"type:text"`
	Type          DocumentType                         `json:"type" gorm:"type:varchar(16);not null;check:type IN ('statute','case_law','guideline')"`
	SourceURL     string                               `json:"sourceUrl"`
	ContentHash   string                               `json:"contentHash" gorm:"type:varchar(64)"`
	PublishedAt   *time.Time                           `json:"publishedAt,omitempty"`
	EffectiveFrom *time.Time                           `json:"effectiveFrom,omitempty"`
	EffectiveTo   *time.Time                           `json:"effectiveTo,omitempty"`
	Metadata      datatypes.JSONType[DocumentMetadata] `json:"metadata" gorm:"type:jsonb"`

	// Associations
	Sections []DocumentSection `json:"sections,omitempty" gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

// DocumentSection is one embedded section of a legal document
type DocumentSection struct {
	BaseModel
	DocumentID    uint             `json:"documentId" gorm:"not null;index"`
	SectionNumber string           `json:"sectionNumber" gorm:"type:varchar(64)"`
	Title         string           `json:"title"`
	Content       string           `json:"content" gorm:"type:text;not null"`
	SectionOrder  int              `json:"sectionOrder" gorm:"not null"`
	Embedding     *pgvector.Vector `json:"-" gorm:"type:vector(1536)"`
}

// SectionMatch is a section returned by similarity search with its parent document
type SectionMatch struct {
	SectionID     uint
	SectionNumber string
	SectionTitle  string
	Content       string
	DocumentTitle string
	Identifier    string
	SourceURL     string
	Type          DocumentType
	Distance      float64
}

// SystemHealth represents service health monitoring
type SystemHealth struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ServiceName    string    `json:"service_name" gorm:"not null;index"`
	Status         string    `json:"status" gorm:"not null;check:status IN ('healthy','degraded','unhealthy')"`
	ResponseTimeMs int       `json:"response_time_ms"`
	ErrorMessage   string    `json:"error_message"`
	CheckedAt      time.Time `json:"checked_at"`
}

// FeedbackStats aggregates feedback rows for one session
type FeedbackStats struct {
	Count         int64
	AverageRating float64
	HelpfulCount  int64
}

// Database interfaces for repository pattern
type ChatSessionRepository interface {
	Create(ctx context.Context, session *ChatSession) error
	GetByID(ctx context.Context, id uint) (*ChatSession, error)
	GetWithQueries(ctx context.Context, id uint) (*ChatSession, error)
	ListWithLatestQuery(ctx context.Context) ([]ChatSession, error)
	UpdateTitle(ctx context.Context, id uint, title string) (*ChatSession, error)
	SetTitleIfNoQueries(ctx context.Context, id uint, title string) (bool, error)
	UpdatePinned(ctx context.Context, id uint, pinned bool) (*ChatSession, error)
	Delete(ctx context.Context, id uint) error
}

type QueryRepository interface {
	Create(ctx context.Context, query *Query) error
	GetByID(ctx context.Context, sessionID, id uint) (*Query, error)
	ListBySession(ctx context.Context, sessionID uint) ([]Query, error)
	RecentBySession(ctx context.Context, sessionID uint, limit int) ([]Query, error)
}

type FeedbackRepository interface {
	Create(ctx context.Context, feedback *Feedback) error
	ListByQuery(ctx context.Context, queryID uint) ([]Feedback, error)
	StatsBySession(ctx context.Context, sessionID uint) (*FeedbackStats, error)
}

type LegalDocumentRepository interface {
	Upsert(ctx context.Context, doc *LegalDocument) error
	GetByIdentifier(ctx context.Context, identifier string) (*LegalDocument, error)
	SearchSections(ctx context.Context, embedding []float32, types []DocumentType, limit int) ([]SectionMatch, error)
}

type SystemHealthRepository interface {
	UpdateServiceHealth(serviceName, status string, responseTime int, errorMsg string) error
	GetAllServicesHealth() ([]SystemHealth, error)
}

// TableName methods for custom table names
func (ChatSession) TableName() string     { return "chat_sessions" }
func (Query) TableName() string           { return "queries" }
func (Feedback) TableName() string        { return "feedback" }
func (LegalDocument) TableName() string   { return "legal_documents" }
func (DocumentSection) TableName() string { return "document_sections" }
func (SystemHealth) TableName() string    { return "system_health" }

// Model validation methods
func (s *ChatSession) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

func (q *Query) Validate() error {
	if q.SessionID == 0 {
		return fmt.Errorf("session ID is required")
	}
	if q.Question == "" && len(q.Attachments) == 0 {
		return fmt.Errorf("question or attachment is required")
	}
	for _, src := range q.Sources {
		if src.Type != "" && !src.Type.Valid() {
			return fmt.Errorf("invalid source type: %s", src.Type)
		}
	}
	return nil
}

func (f *Feedback) Validate() error {
	if f.QueryID == 0 {
		return fmt.Errorf("query ID is required")
	}
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", f.Rating)
	}
	return nil
}

func (d *LegalDocument) Validate() error {
	if d.Identifier == "" {
		return fmt.Errorf("document identifier is required")
	}
	switch d.Type {
	case DocumentStatute, DocumentCaseLaw, DocumentGuideline:
	default:
		return fmt.Errorf("invalid document type: %s", d.Type)
	}
	return nil
}

// GORM hooks
func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	return s.Validate()
}

func (q *Query) BeforeCreate(tx *gorm.DB) error {
	if q.Sources == nil {
		q.Sources = SourceList{}
	}
	if q.Attachments == nil {
		q.Attachments = AttachmentList{}
	}
	return q.Validate()
}

func (f *Feedback) BeforeCreate(tx *gorm.DB) error {
	return f.Validate()
}

func (d *LegalDocument) BeforeCreate(tx *gorm.DB) error {
	return d.Validate()
}

// AfterFind keeps JSON columns non-nil for rows written before the defaults existed.
func (q *Query) AfterFind(tx *gorm.DB) error {
	if q.Sources == nil {
		q.Sources = SourceList{}
	}
	if q.Attachments == nil {
		q.Attachments = AttachmentList{}
	}
	return nil
}
