package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/health"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/llm"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/metrics"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/middleware"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/repository"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/retrieval"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/services"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/storage"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/testutil"
	"github.com/mattfrans/finnish-legal-assistant-sub000/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetriever struct {
	err error
}

func (s *stubRetriever) Search(ctx context.Context, query string) ([]models.Source, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.Source{{
		Title:      "Kuluttajansuojalaki",
		Link:       "https://finlex.fi/fi/laki/ajantasa/1978/19780038",
		Section:    "6 luku 14 §",
		Type:       models.SourceTypeFinlex,
		Identifier: "1978/38",
		Relevance:  0.8,
	}}, nil
}

func (s *stubRetriever) Corpora() []models.SourceType {
	return retrieval.DefaultCorpora
}

type stubGenerator struct {
	sources []models.Source
}

func (g stubGenerator) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.Answer, error) {
	return &llm.Answer{
		Text:       "Etämyynnissä on 14 päivän peruuttamisoikeus.",
		Sources:    g.sources,
		Confidence: models.Confidence{Score: 0.85, Reasoning: "statute"},
	}, nil
}

type testServer struct {
	router    *gin.Engine
	repos     *repository.RepositoryManager
	retriever *stubRetriever
}

type serverOptions struct {
	limit     int
	jwtSecret string
	probe     func(ctx context.Context) error
	sources   []models.Source
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	repos := repository.NewRepositoryManager(testutil.NewDB(t))
	store, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	retriever := &stubRetriever{}
	queries := services.NewLegalQueryService(repos, retriever, stubGenerator{sources: opts.sources}, services.QueryTimeouts{Generation: time.Second, Retrieval: time.Second}, logger)

	if opts.limit == 0 {
		opts.limit = 100
	}
	if opts.probe == nil {
		opts.probe = func(ctx context.Context) error { return nil }
	}
	m := metrics.New("test")

	router := NewRouter(RouterConfig{
		SessionService:  services.NewSessionService(repos, store, queries, logger),
		FeedbackService: services.NewFeedbackService(repos, logger),
		AnalysisService: services.NewAnalysisService(repos, logger),
		HealthChecker:   health.NewHealthChecker([]health.Probe{{Name: "postgresql", Check: opts.probe}}, nil, nil, logger),
		RateLimiter:     middleware.NewRateLimiter(opts.limit, time.Minute, nil, m, logger),
		Metrics:         m,
		Logger:          logger,
		CORSOrigins:     []string{"http://localhost:5173"},
		UploadsDir:      store.Dir(),
		JWTSecret:       opts.jwtSecret,
	})

	return &testServer{router: router, repos: repos, retriever: retriever}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createSession(t *testing.T) models.SessionResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var session models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	return session
}

func multipartChat(t *testing.T, question string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("question", question))
	require.NoError(t, writer.WriteField("languageMode", "fi"))
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorBody {
	t.Helper()
	var body utils.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	session := s.createSession(t)
	assert.Equal(t, models.DefaultSessionTitle, session.Title)
	assert.NotNil(t, session.Queries)

	path := "/api/v1/sessions/" + itoa(session.ID)

	w := s.do(t, http.MethodPatch, path, map[string]string{"title": "Vuokrasopimus"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Vuokrasopimus")

	w = s.do(t, http.MethodPut, path+"/pin", map[string]bool{"isPinned": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isPinned":true`)

	w = s.do(t, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w = s.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeError(t, w).Code)
}

func TestPinRequiresFlag(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	session := s.createSession(t)

	w := s.do(t, http.MethodPut, "/api/v1/sessions/"+itoa(session.ID)+"/pin", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidSessionID(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	w := s.do(t, http.MethodGet, "/api/v1/sessions/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, w).Code)
}

func TestChatMultipartWithAttachment(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	session := s.createSession(t)

	body, contentType := multipartChat(t, "Voinko palauttaa verkosta ostetun tuotteen?", map[string][]byte{
		"kuitti.txt": []byte("Tilaus 123, toimitettu 1.3."),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+itoa(session.ID)+"/chat", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Etämyynnissä on 14 päivän peruuttamisoikeus.", resp.Answer)
	require.Len(t, resp.Sources, 1)
	require.Len(t, resp.Attachments, 1)
	assert.Equal(t, models.AttachmentDocument, resp.Attachments[0].Kind)
	assert.Equal(t, []models.SourceType{models.SourceTypeFinlex, models.SourceTypeKKV}, resp.Metadata.SourcesUsed)

	file := s.do(t, http.MethodGet, resp.Attachments[0].URL, nil)
	assert.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, "Tilaus 123, toimitettu 1.3.", file.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/sessions/"+itoa(session.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Voinko palauttaa verkosta ostetun tuotteen?", got.Title)
	assert.Len(t, got.Queries, 1)
}

func TestChatJSONBody(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	session := s.createSession(t)

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+itoa(session.ID)+"/chat", map[string]string{"question": "Mikä on takuu?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"processingTimeMs"`)
}

func TestChatRejectsEmptyQuestion(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	session := s.createSession(t)

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+itoa(session.ID)+"/chat", map[string]string{"question": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EMPTY_QUESTION", decodeError(t, w).Code)
}

func TestChatRejectsOversizedUpload(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	session := s.createSession(t)

	big := bytes.Repeat([]byte("a"), int(services.MaxUploadBytes)+512*1024)
	body, contentType := multipartChat(t, "Liian iso", map[string][]byte{"big.txt": big})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+itoa(session.ID)+"/chat", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UPLOAD_TOO_LARGE", decodeError(t, w).Code)

	queries, err := s.repos.Query.ListBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, queries)
}

func TestChatUpstreamFailure(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	s.retriever.err = errors.New("connection reset")
	session := s.createSession(t)

	w := s.do(t, http.MethodPost, "/api/v1/sessions/"+itoa(session.ID)+"/chat", map[string]string{"question": "Kysymys"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", body.Code)
	assert.NotContains(t, body.Error, "connection reset")
}

func TestFeedbackAndAnalysis(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	session := s.createSession(t)
	sessionPath := "/api/v1/sessions/" + itoa(session.ID)

	w := s.do(t, http.MethodPost, sessionPath+"/chat", map[string]string{"question": "Palautusoikeus?"})
	require.Equal(t, http.StatusOK, w.Code)
	var chat models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chat))
	feedbackPath := sessionPath + "/queries/" + itoa(chat.ID) + "/feedback"

	w = s.do(t, http.MethodPost, feedbackPath, map[string]interface{}{"rating": 5, "helpful": true, "comment": "selkeä"})
	require.Equal(t, http.StatusCreated, w.Code)
	var feedback models.FeedbackResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feedback))
	assert.Equal(t, 5, feedback.Rating)
	assert.Equal(t, chat.ID, feedback.QueryID)

	w = s.do(t, http.MethodPost, feedbackPath, map[string]interface{}{"rating": 2.5, "helpful": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_RATING", decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, feedbackPath, map[string]interface{}{"rating": 3, "helpful": "yes"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	other := s.createSession(t)
	w = s.do(t, http.MethodPost, "/api/v1/sessions/"+itoa(other.ID)+"/queries/"+itoa(chat.ID)+"/feedback", map[string]interface{}{"rating": 4, "helpful": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, sessionPath+"/analysis", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var analysis models.AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))
	assert.Equal(t, 1, analysis.QueryCount)
	assert.Equal(t, int64(1), analysis.FeedbackCount)
	require.NotNil(t, analysis.AverageRating)
	assert.InDelta(t, 5.0, *analysis.AverageRating, 1e-9)
}

func TestGetSessionIsStableAfterChatAndFeedback(t *testing.T) {
	s := newTestServer(t, serverOptions{sources: []models.Source{
		{Title: "KKV:n ratkaisu", Type: models.SourceTypeKKV, Identifier: "KKV/2021/12", Relevance: 0.8},
		{Title: "Kuluttajariitalautakunta", Type: models.SourceTypeKKV, Identifier: "KRIL 1234/2020", Relevance: 0.8},
		{Title: "Hallituksen esitys", Type: models.SourceTypeFinlex, Identifier: "HE 157/2013", Relevance: 0.9},
	}})
	session := s.createSession(t)
	sessionPath := "/api/v1/sessions/" + itoa(session.ID)

	w := s.do(t, http.MethodPost, sessionPath+"/chat", map[string]string{"question": "Palautusoikeus?"})
	require.Equal(t, http.StatusOK, w.Code)
	var chat models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chat))

	w = s.do(t, http.MethodPost, sessionPath+"/queries/"+itoa(chat.ID)+"/feedback", map[string]interface{}{"rating": 4, "helpful": true})
	require.Equal(t, http.StatusCreated, w.Code)

	first := s.do(t, http.MethodGet, sessionPath, nil)
	require.Equal(t, http.StatusOK, first.Code)
	for i := 0; i < 5; i++ {
		again := s.do(t, http.MethodGet, sessionPath, nil)
		require.Equal(t, http.StatusOK, again.Code)
		assert.Equal(t, first.Body.String(), again.Body.String())
	}

	var got models.SessionResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &got))
	require.Len(t, got.Queries, 1)
	identifiers := make([]string, 0, len(got.Queries[0].Sources))
	for _, src := range got.Queries[0].Sources {
		identifiers = append(identifiers, src.Identifier)
	}
	assert.Equal(t, []string{"HE 157/2013", "KKV/2021/12", "KRIL 1234/2020", "1978/38"}, identifiers,
		"ties keep model order, then retrieved order")
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	down := newTestServer(t, serverOptions{probe: func(ctx context.Context) error { return errors.New("down") }})
	w = down.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	s.do(t, http.MethodGet, "/api/v1/sessions", nil)

	w := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_api_response_seconds")
}

func TestRateLimitedRoutes(t *testing.T) {
	s := newTestServer(t, serverOptions{limit: 1})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/sessions", nil).Code)
	w := s.do(t, http.MethodGet, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, w).Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)
}

func TestAuthEnforcedWhenSecretSet(t *testing.T) {
	secret := "test-secret"
	s := newTestServer(t, serverOptions{jwtSecret: secret})

	w := s.do(t, http.MethodGet, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_REQUIRED", decodeError(t, w).Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Subscription: "active",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
