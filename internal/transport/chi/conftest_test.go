package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrank/internal/domain"
	"github.com/kailas-cloud/vecrank/internal/domain/item"
	"github.com/kailas-cloud/vecrank/internal/domain/ranking/request"
	"github.com/kailas-cloud/vecrank/internal/domain/ranking/result"
	captionuc "github.com/kailas-cloud/vecrank/internal/usecase/caption"
	healthuc "github.com/kailas-cloud/vecrank/internal/usecase/health"
)

// --- Mocks ---

type mockEmbeddings struct {
	vec      []float32
	batch    [][]float32
	err      error
	tokens   int
	recorded bool // record usage even when tokens is zero, like a cache hit
	gotTexts []string
}

func (m *mockEmbeddings) EmbedText(ctx context.Context, text string) ([]float32, int, error) {
	m.gotTexts = []string{text}
	if m.err != nil {
		return nil, 0, m.err
	}
	if m.tokens > 0 || m.recorded {
		domain.UsageFromContext(ctx).AddTokens(m.tokens)
	}
	return m.vec, len(m.vec), nil
}

func (m *mockEmbeddings) EmbedTextBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.gotTexts = texts
	if m.err != nil {
		return nil, m.err
	}
	if m.tokens > 0 || m.recorded {
		domain.UsageFromContext(ctx).AddTokens(m.tokens)
	}
	return m.batch, nil
}

type mockRanker struct {
	results  []result.Result
	err      error
	gotReq   request.Request
	gotItems []item.Item
}

func (m *mockRanker) Rank(_ context.Context, req request.Request, items []item.Item) ([]result.Result, error) {
	m.gotReq, m.gotItems = req, items
	return m.results, m.err
}

type mockCaptions struct {
	res     captionuc.Result
	err     error
	gotData []byte
}

func (m *mockCaptions) Caption(_ context.Context, data []byte) (captionuc.Result, error) {
	m.gotData = data
	return m.res, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

// --- Helpers ---

type testDeps struct {
	embeddings *mockEmbeddings
	ranker     *mockRanker
	captions   *mockCaptions
	health     *mockHealth
}

func newTestRouter(t *testing.T, opts Options) (http.Handler, *testDeps) {
	t.Helper()
	deps := &testDeps{
		embeddings: &mockEmbeddings{},
		ranker:     &mockRanker{},
		captions:   &mockCaptions{},
		health:     &mockHealth{},
	}
	s := NewServer(deps.embeddings, deps.ranker, deps.captions, deps.health, opts, zap.NewNop())
	r := chirouter.NewRouter()
	s.Register(r)
	return r, deps
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func doUpload(t *testing.T, h http.Handler, field, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="photo.png"`}
	if contentType != "" {
		hdr["Content-Type"] = []string{contentType}
	}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/caption", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}
