package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// SourceType is the corpus a citation comes from.
type SourceType string

const (
	SourceTypeFinlex SourceType = "finlex"
	SourceTypeKKV    SourceType = "kkv"
	SourceTypeOther  SourceType = "other"
)

// ParseSourceType maps free-form collaborator tags onto the closed set.
// Empty input stays empty since the type tag is optional.
func ParseSourceType(s string) SourceType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "finlex", "statute", "case_law", "law":
		return SourceTypeFinlex
	case "kkv", "guideline", "consumer_agency":
		return SourceTypeKKV
	default:
		return SourceTypeOther
	}
}

func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeFinlex, SourceTypeKKV, SourceTypeOther:
		return true
	}
	return false
}

func (t *SourceType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = ParseSourceType(raw)
	return nil
}

// AttachmentKind is either an image or a document.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
)

// AttachmentKindFor classifies an upload by its content type.
func AttachmentKindFor(contentType string) AttachmentKind {
	if strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return AttachmentImage
	}
	return AttachmentDocument
}

// DocumentType is the kind of legal document stored for retrieval.
type DocumentType string

const (
	DocumentStatute   DocumentType = "statute"
	DocumentCaseLaw   DocumentType = "case_law"
	DocumentGuideline DocumentType = "guideline"
)

// Corpus returns the citation corpus a document type belongs to.
func (d DocumentType) Corpus() SourceType {
	switch d {
	case DocumentStatute, DocumentCaseLaw:
		return SourceTypeFinlex
	case DocumentGuideline:
		return SourceTypeKKV
	default:
		return SourceTypeOther
	}
}

// DocumentTypesFor returns the document types searched for a corpus.
func DocumentTypesFor(corpus SourceType) []DocumentType {
	switch corpus {
	case SourceTypeFinlex:
		return []DocumentType{DocumentStatute, DocumentCaseLaw}
	case SourceTypeKKV:
		return []DocumentType{DocumentGuideline}
	default:
		return nil
	}
}

// Source is a citation attached to an answer.
type Source struct {
	Link       string     `json:"link"`
	Title      string     `json:"title"`
	Section    string     `json:"section,omitempty"`
	Type       SourceType `json:"type,omitempty"`
	Identifier string     `json:"identifier,omitempty"`
	Relevance  float64    `json:"relevance"`
}

// Confidence is the model's self-assessed certainty.
type Confidence struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Attachment describes an uploaded file stored alongside a query.
type Attachment struct {
	Kind        AttachmentKind `json:"kind"`
	Filename    string         `json:"filename"`
	URL         string         `json:"url"`
	ContentType string         `json:"contentType"`
	Size        int64          `json:"size"`
}

// Clamp01 bounds v to [0,1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SortByRelevance orders sources by descending relevance, keeping insertion
// order for ties.
func SortByRelevance(sources []Source) []Source {
	sorted := make([]Source, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Relevance > sorted[j].Relevance
	})
	return sorted
}

// SourceList is stored as a JSON array column.
type SourceList []Source

func (s SourceList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *SourceList) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("cannot scan %T into SourceList", value)
	}
	if len(data) == 0 || string(data) == "null" {
		*s = SourceList{}
		return nil
	}
	return json.Unmarshal(data, s)
}

// AttachmentList is stored as a JSON array column.
type AttachmentList []Attachment

func (a AttachmentList) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (a *AttachmentList) Scan(value interface{}) error {
	data, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("cannot scan %T into AttachmentList", value)
	}
	if len(data) == 0 || string(data) == "null" {
		*a = AttachmentList{}
		return nil
	}
	return json.Unmarshal(data, a)
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}
