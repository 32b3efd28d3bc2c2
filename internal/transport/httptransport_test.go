package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rescale/blobup/internal/config"
	"github.com/rescale/blobup/internal/uploadengine"
)

func newTestTransport(t *testing.T, serverURL string) *HTTPTransport {
	t.Helper()
	cfg := &config.Config{
		APIBaseURL: serverURL,
		APIKey:     "test-key",
		ProxyMode:  "no-proxy",
	}
	tr, err := NewHTTPTransport(cfg, 0)
	if err != nil {
		t.Fatalf("NewHTTPTransport: %v", err)
	}
	return tr
}

func TestNewHTTPTransportRejectsEmptyBaseURL(t *testing.T) {
	_, err := NewHTTPTransport(&config.Config{ProxyMode: "no-proxy"}, 0)
	if err == nil {
		t.Fatal("expected error for empty APIBaseURL")
	}
}

func TestCreateParsesUploadID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/blob/upload" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"uploadId": "up-123"})
	}))
	defer server.Close()

	tr := newTestTransport(t, server.URL)
	id, err := tr.Create(context.Background(), uploadengine.UploadFile{Name: "a.bin", Size: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "up-123" {
		t.Fatalf("uploadID = %q, want up-123", id)
	}
}

func TestCreateRejectsBelowMinimumSizeWithoutCallingServer(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"uploadId": "up-123"})
	}))
	defer server.Close()

	cfg := &config.Config{APIBaseURL: server.URL, APIKey: "test-key", ProxyMode: "no-proxy", MinCreateSize: 4096}
	tr, err := NewHTTPTransport(cfg, 0)
	if err != nil {
		t.Fatalf("NewHTTPTransport: %v", err)
	}

	_, err = tr.Create(context.Background(), uploadengine.UploadFile{Name: "tiny.bin", Size: 10})
	if err == nil {
		t.Fatal("expected an error for a file below MinCreateSize")
	}
	if called {
		t.Fatal("Create should reject before making any network call")
	}
}

func TestCreateFailureWrapsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "bad file name"})
	}))
	defer server.Close()

	tr := newTestTransport(t, server.URL)
	_, err := tr.Create(context.Background(), uploadengine.UploadFile{Name: "a.bin"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "bad file name") {
		t.Fatalf("err = %v, want it to contain the detail message", err)
	}
}

func TestUploadPartSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/blob/upload/1" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("upload_id") != "up-123" {
			http.Error(w, "missing upload_id", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := newTestTransport(t, server.URL)
	part := &uploadengine.Part{Index: 1, Start: 0, End: 4}
	ok, err := tr.UploadPart(context.Background(), part, "up-123", []byte("data"))
	if err != nil {
		t.Fatalf("UploadPart: %v", err)
	}
	if !ok {
		t.Fatal("UploadPart ok = false, want true")
	}
}

func TestUploadPartRejectionReturnsFalseNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"detail": "part already received"})
	}))
	defer server.Close()

	tr := newTestTransport(t, server.URL)
	part := &uploadengine.Part{Index: 1, Start: 0, End: 4}
	ok, err := tr.UploadPart(context.Background(), part, "up-123", []byte("data"))
	if err != nil {
		t.Fatalf("UploadPart returned an error for a well-formed 4xx rejection: %v", err)
	}
	if ok {
		t.Fatal("ok = true, want false for a rejected part")
	}
}

func TestUploadPartServerErrorIsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := newTestTransport(t, server.URL)
	part := &uploadengine.Part{Index: 1, Start: 0, End: 4}
	_, err := tr.UploadPart(context.Background(), part, "up-123", []byte("data"))
	if err == nil {
		t.Fatal("expected a *TransportFailure for a 500 response")
	}
	if _, ok := err.(*uploadengine.TransportFailure); !ok {
		t.Fatalf("err = %v (%T), want *uploadengine.TransportFailure", err, err)
	}
}

func TestUploadPartAbortedContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := newTestTransport(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	part := &uploadengine.Part{Index: 1, Start: 0, End: 4}
	_, err := tr.UploadPart(ctx, part, "up-123", []byte("data"))
	if err != uploadengine.ErrAborted {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
}

func TestFinalizeParsesArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/blob/upload" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("file_name") != "a.bin" || r.FormValue("upload_id") != "up-123" {
			http.Error(w, "missing fields", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"uid": "artifact-1", "fileName": "a.bin"})
	}))
	defer server.Close()

	tr := newTestTransport(t, server.URL)
	artifact, err := tr.Finalize(context.Background(), "a.bin", "up-123")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if artifact.UID != "artifact-1" {
		t.Fatalf("artifact.UID = %q, want artifact-1", artifact.UID)
	}
}

func TestCancelSendsUploadIDAsQueryParam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Query().Get("upload_id") != "up-123" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	tr := newTestTransport(t, server.URL)
	if err := tr.Cancel(context.Background(), "up-123"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
}
