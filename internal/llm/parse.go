package llm

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
)

const (
	// FallbackConfidence is used when the reply carries no usable confidence.
	FallbackConfidence = 0.5
	FallbackReasoning  = "fallback: unstructured model output"
)

var errEmptyAnswer = errors.New("answer field is empty")

type answerPayload struct {
	Answer     string `json:"answer"`
	Confidence *struct {
		Score     *float64 `json:"score"`
		Reasoning string   `json:"reasoning"`
	} `json:"confidence"`
	Sources []models.Source `json:"sources"`
}

// ParseAnswer validates a model reply against the answer schema. Replies that
// do not validate are returned verbatim with a neutral confidence and
// Fallback set; the second return value carries the validation error.
func ParseAnswer(raw string) (*Answer, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return &Answer{
			Text:       strings.TrimSpace(raw),
			Confidence: models.Confidence{Score: FallbackConfidence, Reasoning: FallbackReasoning},
			Sources:    []models.Source{},
			Fallback:   true,
		}, err
	}

	answer := &Answer{
		Text:       strings.TrimSpace(payload.Answer),
		Confidence: models.Confidence{Score: FallbackConfidence, Reasoning: "model did not report confidence"},
		Sources:    make([]models.Source, 0, len(payload.Sources)),
	}
	if c := payload.Confidence; c != nil && c.Score != nil {
		answer.Confidence = models.Confidence{Score: *c.Score, Reasoning: c.Reasoning}
	}
	for _, src := range payload.Sources {
		if strings.TrimSpace(src.Title) == "" {
			continue
		}
		answer.Sources = append(answer.Sources, src)
	}
	return answer, nil
}

func decodePayload(raw string) (*answerPayload, error) {
	var payload answerPayload
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.Answer) == "" {
		return nil, errEmptyAnswer
	}
	return &payload, nil
}

// stripCodeFence removes a surrounding ```json fence some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
