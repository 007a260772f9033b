package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFetcherWritesTempFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Plex-Token"); got != "secret" {
			t.Errorf("X-Plex-Token = %q; want secret", got)
		}
		w.Write([]byte("raw audio bytes"))
	}))
	defer server.Close()

	fetcher := NewFetcher(func() map[string]string {
		return map[string]string{"X-Plex-Token": "secret"}
	}, 5*time.Second)

	path, err := fetcher.Fetch(context.Background(), server.URL+"/library/parts/1/file.flac")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer os.Remove(path)

	if !strings.HasPrefix(filepath.Base(path), "plexbeat-") {
		t.Errorf("temp file name = %q; want a plexbeat- prefix", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading temp file: %v", err)
	}
	if string(data) != "raw audio bytes" {
		t.Errorf("temp file content = %q; want the response body", data)
	}
}

func TestFetcherErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	fetcher := NewFetcher(nil, 5*time.Second)
	path, err := fetcher.Fetch(context.Background(), server.URL+"/file.mp3")
	if err == nil {
		os.Remove(path)
		t.Fatal("Fetch() = nil error; want HTTP 403 failure")
	}
	if !strings.Contains(err.Error(), "HTTP 403") {
		t.Errorf("error = %v; want mention of HTTP 403", err)
	}
	if path != "" {
		t.Errorf("path = %q; want empty on failure", path)
	}
}

func TestFetcherTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(nil, 50*time.Millisecond)
	if _, err := fetcher.Fetch(context.Background(), server.URL+"/slow.mp3"); err == nil {
		t.Fatal("Fetch() = nil error; want timeout failure")
	}
}
