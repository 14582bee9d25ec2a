package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/fallsearch/internal/repository/memory"
	healthuc "github.com/kailas-cloud/fallsearch/internal/usecase/health"
	"github.com/kailas-cloud/fallsearch/internal/usecase/rewrite"
	searchuc "github.com/kailas-cloud/fallsearch/internal/usecase/search"
)

const fixtures = `
types:
  - name: article
    fields:
      title: text
      score: numeric
    records:
      - {id: 1, title: Rust guide, score: 3}
      - {id: 2, title: Go tutorial, score: 1}
  - name: page
    pk: slug
    fields:
      slug: text
      body: text
    records:
      - {slug: about, body: all about rust}
`

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func newTestRouter(t *testing.T, rw searchuc.Rewriter, opts searchuc.Options) http.Handler {
	t.Helper()
	reg, err := memory.LoadYAML([]byte(fixtures))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	exec := searchuc.New(reg, rw, opts, zap.NewNop())
	srv := NewServer(exec, healthuc.New(reg, nil), zap.NewNop())
	r := chi.NewRouter()
	srv.Register(r)
	return r
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeSearch(t *testing.T, rr *httptest.ResponseRecorder) SearchResponse {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestSearch_QueryString(t *testing.T) {
	h := newTestRouter(t, nil, searchuc.DefaultOptions())
	rr := postJSON(t, h, "/search", `{"query":"rust"}`)
	if rr.Header().Get(searchIDHeader) == "" {
		t.Error("search id header missing")
	}
	resp := decodeSearch(t, rr)

	if resp.Hits != 2 || len(resp.Results) != 2 {
		t.Fatalf("expected 2 hits across types, got %+v", resp)
	}
	first := resp.Results[0]
	if first.Type != "article" || first.PK != "1" || first.Score != 0 {
		t.Errorf("unexpected first result: %+v", first)
	}
	if _, ok := first.Fields["score"]; ok {
		t.Error("score field must be stripped from the snapshot")
	}
	if resp.RewrittenQuery != nil {
		t.Error("no rewrite expected on a hit")
	}
}

func TestSearch_Tree(t *testing.T) {
	h := newTestRouter(t, nil, searchuc.DefaultOptions())
	body := `{"tree":{"op":"AND","children":[{"field":"title","value":"go","input":"clean"}]}}`
	resp := decodeSearch(t, postJSON(t, h, "/search", body))

	if resp.Hits != 1 || resp.Results[0].PK != "2" {
		t.Errorf("unexpected results: %+v", resp)
	}
}

func TestSearch_EmptyTreeIsWildcard(t *testing.T) {
	h := newTestRouter(t, nil, searchuc.DefaultOptions())
	for _, body := range []string{`{}`, `{"tree":{"op":"OR","children":[]}}`, `{"tree":null}`} {
		resp := decodeSearch(t, postJSON(t, h, "/search", body))
		if resp.Hits != 3 {
			t.Errorf("%s: expected all 3 records, got %d", body, resp.Hits)
		}
	}
}

func TestSearch_ModelsAndResultClass(t *testing.T) {
	h := newTestRouter(t, nil, searchuc.DefaultOptions())
	resp := decodeSearch(t, postJSON(t, h, "/search", `{"query":"rust","models":["page"],"result_class":"compact"}`))

	if resp.Hits != 1 || resp.Results[0].Type != "page" {
		t.Errorf("models override ignored: %+v", resp)
	}
	if resp.ResultClass != "compact" {
		t.Errorf("result class not echoed: %q", resp.ResultClass)
	}
}

func TestSearch_UnknownModel_404(t *testing.T) {
	h := newTestRouter(t, nil, searchuc.DefaultOptions())
	rr := postJSON(t, h, "/search", `{"query":"rust","models":["ghost"]}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
	var errResp ErrorResponse
	_ = json.NewDecoder(rr.Body).Decode(&errResp)
	if errResp.Code != ErrorCodeUnknownRecordType {
		t.Errorf("code = %s", errResp.Code)
	}
}

func TestSearch_Rewrite(t *testing.T) {
	rw := rewrite.Func(func(_ context.Context, q string) (string, error) {
		if q == "ржавчина" {
			return "rust", nil
		}
		return q, nil
	})
	h := newTestRouter(t, rw, searchuc.DefaultOptions())
	resp := decodeSearch(t, postJSON(t, h, "/search", `{"query":"ржавчина"}`))

	if resp.Hits != 2 {
		t.Errorf("retry pass should find rust records, got %d", resp.Hits)
	}
	if resp.RewrittenQuery == nil || *resp.RewrittenQuery != "rust" {
		t.Errorf("rewritten query = %v", resp.RewrittenQuery)
	}
}

func TestSearch_RewriteFailure(t *testing.T) {
	rw := rewrite.Func(func(context.Context, string) (string, error) {
		return "", errors.New("provider down")
	})

	hardened := newTestRouter(t, rw, searchuc.DefaultOptions())
	resp := decodeSearch(t, postJSON(t, hardened, "/search", `{"query":"zzz"}`))
	if resp.Hits != 0 || resp.Results == nil {
		t.Errorf("hardened mode must return an empty outcome: %+v", resp)
	}

	strict := newTestRouter(t, rw, searchuc.Options{Policy: searchuc.PolicyOverwrite})
	rr := postJSON(t, strict, "/search", `{"query":"zzz"}`)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("strict mode: got %d, want 502", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "provider down") {
		t.Error("internal error detail leaked to client")
	}
}

func TestSearch_RewriteQuotaExceeded_429(t *testing.T) {
	quota := rewrite.NewQuota("test", rewrite.QuotaLimits{Daily: 1}, nil)
	rw := rewrite.NewMetered(rewrite.Identity{}, quota)
	h := newTestRouter(t, rw, searchuc.Options{Policy: searchuc.PolicyOverwrite})

	decodeSearch(t, postJSON(t, h, "/search", `{"query":"zzz"}`))

	rr := postJSON(t, h, "/search", `{"query":"zzz"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429", rr.Code)
	}
	var er ErrorResponse
	_ = json.NewDecoder(rr.Body).Decode(&er)
	if er.Code != ErrorCodeQuotaExceeded {
		t.Errorf("code = %q", er.Code)
	}
}

func TestSearch_MalformedTreeDegrades(t *testing.T) {
	h := newTestRouter(t, nil, searchuc.DefaultOptions())
	tests := []struct {
		name string
		body string
		hits int
	}{
		// The valueless leaf contributes an empty token; the last term "rust" decides.
		{"leaf without value", `{"tree":{"op":"AND","children":[{"field":"title"},{"value":"rust"}]}}`, 2},
		{"unknown op", `{"tree":{"op":"XOR","children":[{"value":"guide"}]}}`, 1},
		{"unknown input", `{"tree":{"value":"tutorial","input":"fuzzy"}}`, 1},
		{"only valueless leaf", `{"tree":{"field":"title"}}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decodeSearch(t, postJSON(t, h, "/search", tt.body))
			if resp.Hits != tt.hits {
				t.Errorf("hits = %d, want %d", resp.Hits, tt.hits)
			}
		})
	}
}

func TestSearch_BadRequests(t *testing.T) {
	h := newTestRouter(t, nil, searchuc.DefaultOptions())
	tests := []struct {
		name string
		body string
		code ErrorCode
	}{
		{"malformed json", `{"query":`, ErrorCodeBadRequest},
		{"query and tree", `{"query":"a","tree":{"value":"b"}}`, ErrorCodeValidationFailed},
		{"tree not an object", `{"tree":[1,2]}`, ErrorCodeValidationFailed},
		{"tree too deep", `{"tree":` + strings.Repeat(`{"children":[`, 40) + strings.Repeat(`]}`, 40) + `}`, ErrorCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, h, "/search", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400", rr.Code)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if errResp.Code != tt.code {
				t.Errorf("code = %s, want %s", errResp.Code, tt.code)
			}
		})
	}
}

func TestMoreLikeThis(t *testing.T) {
	h := newTestRouter(t, nil, searchuc.DefaultOptions())
	resp := decodeSearch(t, postJSON(t, h, "/more-like-this", `{"type":"article","pk":"1"}`))
	if resp.Hits != 0 || resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("expected empty outcome, got %+v", resp)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	h := newTestRouter(t, nil, searchuc.DefaultOptions())
	tests := []struct {
		path, body, op string
	}{
		{"/update", `{"type":"article","records":[{"pk":"9","fields":{"title":"x"}}]}`, searchuc.OpUpdate},
		{"/remove", `{"type":"article","pk":"1"}`, searchuc.OpRemove},
		{"/clear", `{"models":["article"]}`, searchuc.OpClear},
		{"/clear", ``, searchuc.OpClear},
	}
	for _, tt := range tests {
		rr := postJSON(t, h, tt.path, tt.body)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: got %d", tt.path, rr.Code)
		}
		var resp WarningResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("%s: decode: %v", tt.path, err)
		}
		if resp.Op != tt.op || resp.Warning == "" {
			t.Errorf("%s: unexpected warning %+v", tt.path, resp)
		}
	}

	// Update never mutates: the record sent above is not searchable.
	resp := decodeSearch(t, postJSON(t, h, "/search", `{"query":"x","models":["article"]}`))
	if resp.Hits != 0 {
		t.Errorf("update must not index records, got %d hits", resp.Hits)
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestRouter(t, nil, searchuc.DefaultOptions())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	var resp HealthResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Status != "ok" || resp.Checks["storage"] != "ok" {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestHealthCheck_Unhealthy_503(t *testing.T) {
	srv := NewServer(nil, healthuc.New(failingPinger{}, nil), nil)
	rr := httptest.NewRecorder()
	srv.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d, want 503", rr.Code)
	}
}

func TestRoutes_NotFoundAndMethod(t *testing.T) {
	h := newTestRouter(t, nil, searchuc.DefaultOptions())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Header().Get("Content-Type"), "json") {
		t.Errorf("not found: %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/search", http.NoBody))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("method not allowed: got %d", rr.Code)
	}
}

func TestRecoverer(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Recoverer(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("got %d, want 500", rr.Code)
	}
	var errResp ErrorResponse
	_ = json.NewDecoder(rr.Body).Decode(&errResp)
	if errResp.Code != ErrorCodeInternalError {
		t.Errorf("code = %s", errResp.Code)
	}
	if logs.Len() != 1 {
		t.Errorf("expected 1 panic log, got %d", logs.Len())
	}
}

func TestWideEvent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	reg, _ := memory.LoadYAML([]byte(fixtures))
	srv := NewServer(searchuc.New(reg, nil, searchuc.DefaultOptions(), nil), healthuc.New(reg, nil), logger)
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEvent(logger))
	srv.Register(r)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(`{"query":"rust"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not propagated")
	}
	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 canonical line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusOK) || fields["search_id"] == nil || fields["request_id"] == "" {
		t.Errorf("unexpected fields: %v", fields)
	}
}
