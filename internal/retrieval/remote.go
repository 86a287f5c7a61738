package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/metrics"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

type searchRequest struct {
	Query   string              `json:"query"`
	TopK    int                 `json:"top_k"`
	Corpora []models.SourceType `json:"corpora"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title      string            `json:"title"`
	Link       string            `json:"link"`
	Section    string            `json:"section"`
	Type       models.SourceType `json:"type"`
	Identifier string            `json:"identifier"`
	Score      float64           `json:"score"`
}

// RemoteRetriever queries an external retrieval service over HTTP.
type RemoteRetriever struct {
	baseURL    string
	apiKey     string
	topK       int
	corpora    []models.SourceType
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *logrus.Logger
}

func NewRemoteRetriever(baseURL, apiKey string, topK int, m *metrics.Metrics, logger *logrus.Logger) *RemoteRetriever {
	return &RemoteRetriever{
		baseURL: baseURL,
		apiKey:  apiKey,
		topK:    topK,
		corpora: DefaultCorpora,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		metrics: m,
		logger:  logger,
	}
}

func (r *RemoteRetriever) Corpora() []models.SourceType {
	return r.corpora
}

func (r *RemoteRetriever) Search(ctx context.Context, query string) ([]models.Source, error) {
	timer := r.metrics.UpstreamTimer("retrieval")
	defer timer.ObserveDuration()

	var resp searchResponse
	err := r.makeRequest(ctx, http.MethodPost, "/search", searchRequest{
		Query:   query,
		TopK:    r.topK,
		Corpora: r.corpora,
	}, &resp)
	if err != nil {
		r.metrics.UpstreamErrorInc("retrieval")
		return nil, err
	}

	sources := make([]models.Source, 0, len(resp.Results))
	for _, res := range resp.Results {
		sources = append(sources, models.Source{
			Link:       res.Link,
			Title:      res.Title,
			Section:    res.Section,
			Type:       res.Type,
			Identifier: res.Identifier,
			Relevance:  models.Clamp01(res.Score),
		})
	}
	return groupByCorpus(sources, r.corpora), nil
}

func (r *RemoteRetriever) makeRequest(ctx context.Context, method, endpoint string, payload, result interface{}) error {
	url := r.baseURL + endpoint

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("retrieval request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"method":        method,
		"url":           url,
		"status_code":   resp.StatusCode,
		"response_size": len(respBody),
	}).Debug("Retrieval response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("retrieval request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
