package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opensource-media/magpie/internal/batch"
	"github.com/opensource-media/magpie/internal/cache"
	"github.com/opensource-media/magpie/internal/detector"
	"github.com/opensource-media/magpie/internal/domain"
	"github.com/opensource-media/magpie/internal/rules"
)

const (
	apiRealText = "The city council approved the annual budget on Tuesday after a public hearing."
	apiFakeText = "SHOCKING!!! You won't believe this miracle cure doctors don't want you to know!!!"
)

// createTestServer creates a server with a rule-based detector for testing.
// The engine is returned so tests can load rules directly.
func createTestServer(c domain.Cache) (*Server, *rules.Engine) {
	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}
	detCfg := domain.DetectorConfig{
		MaxTextChars:     5000,
		MaxBatchItems:    50,
		BatchConcurrency: 4,
	}

	engine, _ := rules.NewEngine(5)
	det := detector.New(nil, engine, nil)
	batchProc := batch.NewProcessor(det, batch.WithConcurrency(detCfg.BatchConcurrency))

	return NewServer(cfg, detCfg, nil, c, nil, engine, det, batchProc, nil, "test-v1"), engine
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestAnalyzeEndpoint(t *testing.T) {
	server, _ := createTestServer(nil)

	t.Run("RealText", func(t *testing.T) {
		rr := postJSON(t, server, "/analyze", AnalyzeRequest{Text: apiRealText})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp AnalyzeResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.AnalysisID == "" {
			t.Error("expected analysisId in response")
		}
		if resp.Verdict.Label != domain.LabelReal {
			t.Errorf("expected label REAL, got %s", resp.Verdict.Label)
		}
		if resp.Verdict.Method != domain.MethodRuleBased {
			t.Errorf("expected method rule-based, got %s", resp.Verdict.Method)
		}
		if resp.Cached {
			t.Error("expected uncached verdict")
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("FakeText", func(t *testing.T) {
		rr := postJSON(t, server, "/analyze", AnalyzeRequest{Text: apiFakeText})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp AnalyzeResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp.Verdict.Label != domain.LabelFake {
			t.Errorf("expected label FAKE, got %s", resp.Verdict.Label)
		}
		if resp.Verdict.FakeScore <= 0.5 {
			t.Errorf("expected fake score above 0.5, got %.3f", resp.Verdict.FakeScore)
		}
		if len(resp.Verdict.Details.RuleBased.Signals) == 0 {
			t.Error("expected rule signals in verdict details")
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		// No X-Tenant-ID header

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingText", func(t *testing.T) {
		rr := postJSON(t, server, "/analyze", AnalyzeRequest{})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("TextTooLong", func(t *testing.T) {
		rr := postJSON(t, server, "/analyze", AnalyzeRequest{Text: strings.Repeat("a", 5001)})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := postJSON(t, server, "/analyze", AnalyzeRequest{Text: apiRealText})

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestAnalyzeCaching(t *testing.T) {
	lru := cache.NewLRUCache(100)
	defer lru.Close()

	server, _ := createTestServer(lru)

	// First request computes and caches
	rr := postJSON(t, server, "/analyze", AnalyzeRequest{Text: apiFakeText})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var first AnalyzeResponse
	json.Unmarshal(rr.Body.Bytes(), &first)
	if first.Cached {
		t.Error("expected first request to be uncached")
	}

	// Second identical request hits the cache
	rr = postJSON(t, server, "/analyze", AnalyzeRequest{Text: apiFakeText})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var second AnalyzeResponse
	json.Unmarshal(rr.Body.Bytes(), &second)
	if !second.Cached {
		t.Error("expected second request to be cached")
	}
	if second.Verdict.FakeScore != first.Verdict.FakeScore {
		t.Errorf("cached score %.3f differs from original %.3f", second.Verdict.FakeScore, first.Verdict.FakeScore)
	}
}

func TestBatchEndpoint(t *testing.T) {
	server, _ := createTestServer(nil)

	t.Run("SuccessfulBatch", func(t *testing.T) {
		rr := postJSON(t, server, "/analyze/batch", BatchRequest{
			Texts: []string{apiRealText, apiFakeText, apiRealText},
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp BatchResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if len(resp.Items) != 3 {
			t.Fatalf("expected 3 items, got %d", len(resp.Items))
		}
		if resp.Summary.Total != 3 {
			t.Errorf("expected summary total 3, got %d", resp.Summary.Total)
		}
		if resp.Summary.FakeCount != 1 {
			t.Errorf("expected 1 fake, got %d", resp.Summary.FakeCount)
		}
		if resp.Summary.RealCount != 2 {
			t.Errorf("expected 2 real, got %d", resp.Summary.RealCount)
		}
		if resp.Items[1].Verdict.Label != domain.LabelFake {
			t.Errorf("expected second item FAKE, got %s", resp.Items[1].Verdict.Label)
		}
	})

	t.Run("EmptyTexts", func(t *testing.T) {
		rr := postJSON(t, server, "/analyze/batch", BatchRequest{Texts: []string{}})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("TooManyTexts", func(t *testing.T) {
		texts := make([]string, 51)
		for i := range texts {
			texts[i] = apiRealText
		}

		rr := postJSON(t, server, "/analyze/batch", BatchRequest{Texts: texts})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestPageEndpoint(t *testing.T) {
	server, _ := createTestServer(nil)

	t.Run("TitleAndContent", func(t *testing.T) {
		rr := postJSON(t, server, "/analyze/page", PageRequest{
			Title:   "Council approves budget",
			Content: apiRealText,
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var page domain.PageVerdict
		if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if page.Label != domain.LabelReal {
			t.Errorf("expected overall label REAL, got %s", page.Label)
		}
	})

	t.Run("BothBlank", func(t *testing.T) {
		rr := postJSON(t, server, "/analyze/page", PageRequest{})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var page domain.PageVerdict
		json.Unmarshal(rr.Body.Bytes(), &page)

		if page.Label != domain.LabelUnknown {
			t.Errorf("expected overall label UNKNOWN, got %s", page.Label)
		}
	})
}

func TestGetAnalysisWithoutRepo(t *testing.T) {
	server, _ := createTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/analyses/some-id", nil)
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 without repository, got %d", rr.Code)
	}
}

func TestStatsWithoutHistory(t *testing.T) {
	server, _ := createTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 without history service, got %d", rr.Code)
	}
}

func TestRuleEndpoints(t *testing.T) {
	server, engine := createTestServer(nil)

	t.Run("ListRulesEmpty", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]any
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if count, ok := resp["count"].(float64); !ok || count != 0 {
			t.Errorf("expected 0 rules, got %v", resp["count"])
		}
	})

	t.Run("CreateRule", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{
			ID:         "high-exclaim",
			Name:       "High Exclamation Density",
			Expression: "exclaim_ratio > 0.1 ? 0.5 : 0.0",
			Weight:     0.5,
			Enabled:    true,
		})

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateDoesNotActivate", func(t *testing.T) {
		// Created rules stay inactive until POST /rules/reload.
		if got := engine.RulesCount(); got != 0 {
			t.Errorf("expected 0 loaded rules after create, got %d", got)
		}

		req := httptest.NewRequest(http.MethodGet, "/rules/high-exclaim", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404 before reload, got %d", rr.Code)
		}
	})

	t.Run("GetRule", func(t *testing.T) {
		err := engine.LoadRule(&domain.RuleConfig{
			ID:         "high-exclaim",
			TenantID:   GlobalTenantID,
			Name:       "High Exclamation Density",
			Version:    "1.0.0",
			Expression: "exclaim_ratio > 0.1 ? 0.5 : 0.0",
			Weight:     0.5,
			Enabled:    true,
		})
		if err != nil {
			t.Fatalf("failed to load rule: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/rules/high-exclaim", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var rule domain.RuleConfig
		json.Unmarshal(rr.Body.Bytes(), &rule)

		if rule.ID != "high-exclaim" {
			t.Errorf("expected rule high-exclaim, got %s", rule.ID)
		}
	})

	t.Run("GetRuleNotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/nonexistent", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("CreateRuleInvalidExpression", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{
			ID:         "bad-rule",
			Name:       "Bad Rule",
			Expression: "amount > 100.0",
			Weight:     0.5,
			Enabled:    true,
		})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for undeclared variable, got %d", rr.Code)
		}
	})

	t.Run("CreateRuleMissingFields", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", CreateRuleRequest{ID: "incomplete"})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ReloadWithoutRepo", func(t *testing.T) {
		rr := postJSON(t, server, "/rules/reload", nil)

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503 without repository, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := createTestServer(nil)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TenantMiddlewareExtractsID", func(t *testing.T) {
		var capturedTenantID string

		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedTenantID = GetTenantID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", "my-tenant-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedTenantID != "my-tenant-123" {
			t.Errorf("expected tenant ID 'my-tenant-123', got '%s'", capturedTenantID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
