package fetch_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chriscorrea/civil/internal/fetch"
)

func TestOpen(t *testing.T) {
	var mu sync.Mutex
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAgent = r.Header.Get("User-Agent")
		mu.Unlock()
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("comment from http"))
		case "/large":
			w.Header().Set("Content-Length", "1000")
			_, _ = w.Write([]byte(strings.Repeat("a", 1000)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	small := filepath.Join(dir, "small.txt")
	if err := os.WriteFile(small, []byte("comment from file"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	big := filepath.Join(dir, "big.txt")
	if err := os.WriteFile(big, []byte(strings.Repeat("b", 200)), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	f := fetch.New(fetch.Options{MaxBytes: 100, UserAgent: "civil-test"}).
		WithStdin(strings.NewReader("comment from stdin"))

	tests := []struct {
		name        string
		source      string
		expectError bool
		expectData  string
	}{
		{name: "stdin", source: "-", expectData: "comment from stdin"},
		{name: "http success", source: server.URL + "/ok", expectData: "comment from http"},
		{name: "http not found", source: server.URL + "/missing", expectError: true},
		{name: "http too large", source: server.URL + "/large", expectError: true},
		{name: "file success", source: small, expectData: "comment from file"},
		{name: "file too large", source: big, expectError: true},
		{name: "file missing", source: filepath.Join(dir, "absent.txt"), expectError: true},
		{name: "directory", source: dir, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := f.ReadAll(context.Background(), tt.source)
			if tt.expectError {
				if err == nil {
					t.Errorf("ReadAll(%q) expected error, got %q", tt.source, data)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadAll(%q) unexpected error: %v", tt.source, err)
			}
			if string(data) != tt.expectData {
				t.Errorf("ReadAll(%q) = %q, want %q", tt.source, data, tt.expectData)
			}
		})
	}

	mu.Lock()
	defer mu.Unlock()
	if gotAgent != "civil-test" {
		t.Errorf("User-Agent = %q, want civil-test", gotAgent)
	}
}

func TestOpen_StreamLimit(t *testing.T) {
	// no Content-Length, so only the streaming limit can stop it
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 10; i++ {
			_, _ = w.Write([]byte(strings.Repeat("x", 50)))
			flusher.Flush()
		}
	}))
	defer server.Close()

	f := fetch.New(fetch.Options{MaxBytes: 120})
	rc, err := f.Open(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	defer rc.Close()

	if _, err := io.ReadAll(rc); err == nil || !strings.Contains(err.Error(), "exceeds size limit") {
		t.Errorf("ReadAll() error = %v, want size limit error", err)
	}
}

func TestOpen_ExactLimit(t *testing.T) {
	f := fetch.New(fetch.Options{MaxBytes: 5}).WithStdin(strings.NewReader("12345"))
	data, err := f.ReadAll(context.Background(), "-")
	if err != nil {
		t.Fatalf("ReadAll() unexpected error: %v", err)
	}
	if string(data) != "12345" {
		t.Errorf("ReadAll() = %q, want 12345", data)
	}
}

func TestOpen_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	f := fetch.New(fetch.Options{Timeout: 100 * time.Millisecond})
	if _, err := f.Open(context.Background(), server.URL); err == nil {
		t.Error("Open() expected timeout error")
	}
}

func TestOpen_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("late"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fetch.New(fetch.Options{}).Open(ctx, server.URL); err == nil {
		t.Error("Open() expected error for a cancelled context")
	}
}
