package models

import "time"

type RenameSessionRequest struct {
	Title string `json:"title"`
}

type PinSessionRequest struct {
	IsPinned *bool `json:"isPinned" binding:"required"`
}

// FeedbackRequest keeps rating and helpful raw so that 2.5 or "yes" can be
// rejected with a precise error instead of a generic bind failure.
type FeedbackRequest struct {
	Rating  interface{} `json:"rating"`
	Helpful interface{} `json:"helpful"`
	Comment *string     `json:"comment"`
}

type SessionResponse struct {
	ID        uint            `json:"id"`
	Title     string          `json:"title"`
	IsPinned  bool            `json:"isPinned"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Queries   []QueryResponse `json:"queries"`
}

type QueryResponse struct {
	ID           uint         `json:"id"`
	SessionID    uint         `json:"sessionId"`
	Question     string       `json:"question"`
	Answer       string       `json:"answer"`
	Sources      []Source     `json:"sources"`
	Attachments  []Attachment `json:"attachments"`
	LegalContext *string      `json:"legalContext,omitempty"`
	Confidence   *Confidence  `json:"confidence,omitempty"`
	LanguageMode string       `json:"languageMode,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

type ResponseMetadata struct {
	ProcessingTimeMs int64        `json:"processingTimeMs"`
	SourcesUsed      []SourceType `json:"sourcesUsed"`
	LastUpdated      time.Time    `json:"lastUpdated"`
	Fallback         bool         `json:"fallback"`
}

type ChatResponse struct {
	QueryResponse
	Metadata ResponseMetadata `json:"metadata"`
}

type FeedbackResponse struct {
	ID        uint      `json:"id"`
	QueryID   uint      `json:"queryId"`
	Rating    int       `json:"rating"`
	Helpful   bool      `json:"helpful"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type TimelineEntry struct {
	QueryID     uint      `json:"queryId"`
	Question    string    `json:"question"`
	Confidence  *float64  `json:"confidence"`
	SourceCount int       `json:"sourceCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AnalysisResponse struct {
	SessionID         uint            `json:"sessionId"`
	QueryCount        int             `json:"queryCount"`
	AverageConfidence *float64        `json:"averageConfidence"`
	CitedTitles       []string        `json:"citedTitles"`
	CorpusBreakdown   map[string]int  `json:"corpusBreakdown"`
	FeedbackCount     int64           `json:"feedbackCount"`
	AverageRating     *float64        `json:"averageRating"`
	Timeline          []TimelineEntry `json:"timeline"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// NewQueryResponse renders a stored query, sorting sources for display.
func NewQueryResponse(q *Query) QueryResponse {
	sources := SortByRelevance(q.Sources)
	attachments := make([]Attachment, len(q.Attachments))
	copy(attachments, q.Attachments)
	return QueryResponse{
		ID:           q.ID,
		SessionID:    q.SessionID,
		Question:     q.Question,
		Answer:       q.Answer,
		Sources:      sources,
		Attachments:  attachments,
		LegalContext: q.LegalContext,
		Confidence:   q.Confidence(),
		LanguageMode: q.LanguageMode,
		CreatedAt:    q.CreatedAt,
	}
}

func NewSessionResponse(s *ChatSession) SessionResponse {
	queries := make([]QueryResponse, 0, len(s.Queries))
	for i := range s.Queries {
		queries = append(queries, NewQueryResponse(&s.Queries[i]))
	}
	return SessionResponse{
		ID:        s.ID,
		Title:     s.Title,
		IsPinned:  s.IsPinned,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Queries:   queries,
	}
}

func NewFeedbackResponse(f *Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:        f.ID,
		QueryID:   f.QueryID,
		Rating:    f.Rating,
		Helpful:   f.Helpful,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
	}
}
