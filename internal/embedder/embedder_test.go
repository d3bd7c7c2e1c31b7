package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func Test_OpenAIEmbedder_ParsesAndReorders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		// Return data out of order; the client must sort by index.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.3, 0.4}, "index": 1},
				{"embedding": []float32{0.1, 0.2}, "index": 0},
			},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "text-embedding-3-small",
	})

	got, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 embeddings, got %d", len(got))
	}
	if got[0][0] != 0.1 || got[1][0] != 0.3 {
		t.Errorf("embeddings not reordered by index: %v", got)
	}
}

func Test_OpenAIEmbedder_SurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "bad key"},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "nope", Model: "m"})
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Errorf("expected error from 401 response")
	}
}

func Test_OllamaEmbedder_ParsesBatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{1, 2}, {3, 4}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	got, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(got) != 2 || got[1][1] != 4 {
		t.Errorf("unexpected embeddings: %v", got)
	}
}

func Test_NewFromEnv_OpenAIRequiresKey(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("EMBEDDING_API_KEY", "")

	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Errorf("missing API key should be a configuration error")
	}
}

func Test_NewFromEnv_UnknownBackendRejected(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "bedrock")

	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Errorf("unknown backend should be rejected")
	}
}

func Test_DefaultDimensions_PerBackend(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSIONS", "")

	if got := DefaultDimensions("ollama"); got != 768 {
		t.Errorf("ollama: want 768, got %d", got)
	}
	if got := DefaultDimensions("gemini"); got != 768 {
		t.Errorf("gemini: want 768, got %d", got)
	}
	if got := DefaultDimensions("openai"); got != 1536 {
		t.Errorf("openai: want 1536, got %d", got)
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "256")
	if got := DefaultDimensions("openai"); got != 256 {
		t.Errorf("override: want 256, got %d", got)
	}
}
