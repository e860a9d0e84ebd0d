package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/abramin/golabel/internal/store"
	"github.com/rs/zerolog"
)

func setupTestServer(t *testing.T) (*Server, store.LabelID) {
	t.Helper()
	st, err := store.Open(t.TempDir(), ".labelgen")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	batch, err := st.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	defer batch.Rollback()

	if err := batch.InsertPackage(&store.Package{PkgPath: "myapp/checks", Name: "checks", Dir: "/checks"}); err != nil {
		t.Fatal(err)
	}
	id, err := batch.InsertLabel(&store.Label{PkgPath: "myapp/checks", Name: "Check", Kind: "func", Signature: "func(string) error", File: "checks.go", Line: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := batch.InsertLabel(&store.Label{PkgPath: "myapp/checks", Name: "Limits", Kind: "const", Signature: "int", File: "checks.go", Line: 4}); err != nil {
		t.Fatal(err)
	}
	for _, item := range []string{"nonEmpty", "short"} {
		if err := batch.InsertAttachment(&store.Attachment{LabelID: id, PkgPath: "myapp/checks", Item: item, ItemKind: "func", Path: "Check", File: "checks.go", Line: 10}); err != nil {
			t.Fatal(err)
		}
	}
	if err := batch.Commit(); err != nil {
		t.Fatal(err)
	}

	return &Server{store: st, port: 8080, logger: zerolog.Nop()}, id
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	s, _ := setupTestServer(t)

	w := get(t, s, "/api/health")

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp["status"])
	}
}

func TestHandleStats(t *testing.T) {
	s, _ := setupTestServer(t)

	w := get(t, s, "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var stats store.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stats.LabelCount != 2 || stats.AttachmentCount != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandleLabels(t *testing.T) {
	s, _ := setupTestServer(t)

	tests := []struct {
		url  string
		want int
	}{
		{"/api/labels", 2},
		{"/api/labels?q=limits", 1},
		{"/api/labels?q=Limits", 1},
		{"/api/labels?q=myapp", 2},
		{"/api/labels?q=nothing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			w := get(t, s, tt.url)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}

			var labels []store.LabelSummary
			if err := json.NewDecoder(w.Body).Decode(&labels); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(labels) != tt.want {
				t.Errorf("expected %d labels, got %d", tt.want, len(labels))
			}
		})
	}
}

func TestHandleLabelAttachments(t *testing.T) {
	s, id := setupTestServer(t)

	w := get(t, s, "/api/labels/"+itoa(id)+"/attachments")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var atts []store.Attachment
	if err := json.NewDecoder(w.Body).Decode(&atts); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(atts) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(atts))
	}
	if atts[0].Item != "nonEmpty" {
		t.Errorf("expected first item nonEmpty, got %s", atts[0].Item)
	}
}

func TestHandleLabelAttachments_LabelWithoutItems(t *testing.T) {
	s, _ := setupTestServer(t)

	labels, err := s.store.Labels()
	if err != nil {
		t.Fatal(err)
	}
	var limits store.LabelID
	for _, l := range labels {
		if l.Name == "Limits" {
			limits = l.ID
		}
	}

	w := get(t, s, "/api/labels/"+itoa(limits)+"/attachments")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != "[]\n" {
		t.Errorf("expected empty list, got %q", body)
	}
}

func TestHandleLabelAttachments_Errors(t *testing.T) {
	s, _ := setupTestServer(t)

	tests := []struct {
		url  string
		want int
	}{
		{"/api/labels/abc/attachments", http.StatusBadRequest},
		{"/api/labels/1/other", http.StatusNotFound},
		{"/api/labels/9999/attachments", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			w := get(t, s, tt.url)
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/labels", nil)
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/labels", nil)
	w := httptest.NewRecorder()
	s.routes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
}

func itoa(id store.LabelID) string {
	return strconv.FormatInt(int64(id), 10)
}
