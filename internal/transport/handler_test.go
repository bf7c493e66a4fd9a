package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"go-medreport-scanner/internal/config"
	"go-medreport-scanner/internal/enhance"
	"go-medreport-scanner/internal/history"
	"go-medreport-scanner/internal/permission"
	"go-medreport-scanner/internal/pipeline"
	"go-medreport-scanner/internal/share"
	"go-medreport-scanner/internal/summary"
	"go-medreport-scanner/pkg/models"
)

type stubCamera struct {
	data []byte
}

func (c *stubCamera) Capture(ctx context.Context) (models.CapturedImage, error) {
	return models.CapturedImage{Locator: "cam.png", Data: c.data, Width: 32, Height: 32, Format: "png", Source: models.SourceCamera}, nil
}

type testServer struct {
	handler http.Handler
	store   *history.Store
	shared  *bytes.Buffer
}

func newTestServer(t *testing.T, allow bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	backend, err := history.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := history.NewStore(backend)
	store.Load(context.Background())

	p := pipeline.New(pipeline.Deps{
		Permissions: permission.NewGate(permission.Static(allow)),
		Camera:      &stubCamera{data: buf.Bytes()},
		Enhancer:    enhance.New(enhance.DefaultOptions()),
		Summarizer:  summary.NewMockClient(),
		History:     store,
	})

	shared := &bytes.Buffer{}
	dispatcher := share.NewDispatcher("", &share.GenericChannel{Out: shared})

	cfg := config.Default()
	return &testServer{
		handler: NewHandler(Services{Pipeline: p, History: store, Sharer: dispatcher}, cfg),
		store:   store,
		shared:  shared,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decodePipeline(t *testing.T, w *httptest.ResponseRecorder) PipelineResponse {
	t.Helper()
	var resp PipelineResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid pipeline response %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, true)
	w := s.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "available") {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
}

func TestPipelineFlow(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(t, http.MethodGet, "/pipeline", "")
	if got := decodePipeline(t, w).State.Stage; got != pipeline.StageAwaitingPermission {
		t.Fatalf("Expected awaiting_permission, got %s", got)
	}

	w = s.do(t, http.MethodPost, "/pipeline/start", "")
	resp := decodePipeline(t, w)
	if resp.State.Stage != pipeline.StageReady || !resp.View.CanCapture {
		t.Fatalf("Expected ready, got %+v", resp)
	}

	w = s.do(t, http.MethodPost, "/pipeline/capture", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp = decodePipeline(t, w)
	if resp.State.Stage != pipeline.StageComplete {
		t.Fatalf("Expected complete, got %s", resp.State.Stage)
	}
	if resp.View.Summary == nil || resp.View.Summary.English != summary.MockSummary.English {
		t.Errorf("Expected mock summary in view, got %+v", resp.View.Summary)
	}
	if !strings.Contains(w.Body.String(), `"English Summary"`) {
		t.Errorf("Expected wire field names in body")
	}

	w = s.do(t, http.MethodGet, "/history", "")
	var hist models.HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatal(err)
	}
	if hist.Count != 1 || hist.Entries[0].ID != resp.State.Entry.ID {
		t.Errorf("Expected the completed entry in history, got %+v", hist)
	}

	// A finished run cannot be cancelled
	w = s.do(t, http.MethodPost, "/pipeline/cancel", "")
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/pipeline/retake", "")
	if got := decodePipeline(t, w).State.Stage; got != pipeline.StageReady {
		t.Errorf("Expected ready after retake, got %s", got)
	}

	w = s.do(t, http.MethodPost, "/pipeline/cancel", "")
	if got := decodePipeline(t, w).State.Stage; w.Code != http.StatusOK || got != pipeline.StageCancelled {
		t.Errorf("Expected cancelled, got %d %s", w.Code, got)
	}
}

func TestPipelinePermissionDenied(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodPost, "/pipeline/start", "")
	resp := decodePipeline(t, w)
	if resp.State.Stage != pipeline.StageFailed || resp.State.Failure.Stage != pipeline.FailedPermission {
		t.Fatalf("Expected failed(permission), got %+v", resp.State)
	}
	if resp.View.ErrorMessage == "" || !resp.View.CanRetake {
		t.Errorf("Expected an error message and retake path, got %+v", resp.View)
	}

	w = s.do(t, http.MethodPost, "/pipeline/capture", "")
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for capture while failed, got %d", w.Code)
	}
}

func TestGalleryWithoutConfiguredGallery(t *testing.T) {
	s := newTestServer(t, true)
	s.do(t, http.MethodPost, "/pipeline/start", "")

	w := s.do(t, http.MethodPost, "/pipeline/gallery", `{"ref": "scan.jpg"}`)
	resp := decodePipeline(t, w)
	if resp.State.Stage != pipeline.StageFailed || resp.State.Failure.Stage != pipeline.FailedCapture {
		t.Errorf("Expected failed(capture), got %+v", resp.State)
	}
}

func TestSettings(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		want       models.Settings
	}{
		{
			name:       "partial update",
			body:       `{"darkMode": true}`,
			wantStatus: http.StatusOK,
			want:       models.Settings{DefaultLanguage: models.English, DarkMode: true},
		},
		{
			name:       "short language code",
			body:       `{"defaultLanguage": "hi"}`,
			wantStatus: http.StatusOK,
			want:       models.Settings{DefaultLanguage: models.Hindi, DarkMode: true},
		},
		{
			name:       "unknown language",
			body:       `{"defaultLanguage": "fr"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPatch, "/settings", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got models.Settings
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}

	w := s.do(t, http.MethodGet, "/settings", "")
	if !strings.Contains(w.Body.String(), `"defaultLanguage":"hindi"`) {
		t.Errorf("Unexpected settings %s", w.Body.String())
	}
}

func TestShare(t *testing.T) {
	s := newTestServer(t, true)
	entry, err := s.store.AddEntry(context.Background(), models.Summary{English: "english text", Hindi: "हिंदी पाठ"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantShared string
	}{
		{"entry in default language", `{"entry_id": "` + entry.ID + `", "channel": "generic"}`, http.StatusOK, "english text"},
		{"entry in hindi", `{"entry_id": "` + entry.ID + `", "channel": "generic", "language": "hindi"}`, http.StatusOK, "हिंदी पाठ"},
		{"explicit content with title", `{"content": "hello", "channel": "generic", "title": "Report"}`, http.StatusOK, "Report\n\nhello"},
		{"unknown entry", `{"entry_id": "nope", "channel": "generic"}`, http.StatusNotFound, ""},
		{"unknown channel", `{"content": "x", "channel": "pigeon"}`, http.StatusBadRequest, ""},
		{"missing channel", `{"content": "x"}`, http.StatusBadRequest, ""},
		{"nothing to share", `{"channel": "generic"}`, http.StatusBadRequest, ""},
		{"unregistered channel", `{"content": "x", "channel": "email"}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.shared.Reset()
			w := s.do(t, http.MethodPost, "/share", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantShared != "" && !strings.Contains(s.shared.String(), tt.wantShared) {
				t.Errorf("Expected shared output to contain %q, got %q", tt.wantShared, s.shared.String())
			}
		})
	}
}

func TestShareBroadcastReportsPerChannel(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(t, http.MethodPost, "/share", `{"content": "x", "channels": ["generic", "email"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp models.ShareResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 || !resp.Results[0].OK || resp.Results[1].OK {
		t.Errorf("Unexpected results %+v", resp.Results)
	}
}

func TestShareCurrentSummary(t *testing.T) {
	s := newTestServer(t, true)
	s.do(t, http.MethodPost, "/pipeline/start", "")
	s.do(t, http.MethodPost, "/pipeline/capture", "")

	w := s.do(t, http.MethodPost, "/share", `{"channel": "generic"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(s.shared.String(), "BIRADS 5") {
		t.Errorf("Expected current summary to be shared, got %q", s.shared.String())
	}
}

func TestClearHistory(t *testing.T) {
	s := newTestServer(t, true)
	if _, err := s.store.AddEntry(context.Background(), summary.MockSummary); err != nil {
		t.Fatal(err)
	}

	w := s.do(t, http.MethodDelete, "/history", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}
	if len(s.store.Entries()) != 0 {
		t.Error("Expected history to be empty")
	}
}
