package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, model string, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Model != model {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "test",
			"object":  "chat.completion",
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
}

func TestCompleteJSON_PrimaryModelSuccess(t *testing.T) {
	srv := newTestServer(t, "primary-model", `{"thought":"ok","response":"hi"}`, http.StatusOK)
	defer srv.Close()

	r := New(Config{
		BaseURL:      srv.URL + "/v1",
		PrimaryModel: "primary-model",
		Timeout:      5 * time.Second,
	}, nil)

	text, ok, err := r.CompleteJSON(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if !ok || text != `{"thought":"ok","response":"hi"}` {
		t.Fatalf("unexpected result: ok=%v text=%q", ok, text)
	}
}

func TestCompleteJSON_ComplexHintSelectsComplexModel(t *testing.T) {
	srv := newTestServer(t, "complex-model", `{"thought":"ok","response":"done"}`, http.StatusOK)
	defer srv.Close()

	r := New(Config{
		BaseURL:      srv.URL + "/v1",
		PrimaryModel: "primary-model",
		ComplexModel: "complex-model",
		Timeout:      5 * time.Second,
	}, nil)

	_, ok, err := r.CompleteJSON(context.Background(), []Message{{Role: "user", Content: "research this"}}, true)
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if !ok {
		t.Fatalf("expected success")
	}
}

func TestCompleteJSON_FallsBackOnPrimaryFailure(t *testing.T) {
	var primaryHits, fallbackHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch req.Model {
		case "primary-model":
			primaryHits++
			w.WriteHeader(http.StatusInternalServerError)
		case "fallback-model":
			fallbackHits++
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "fallback response"}}},
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	r := New(Config{
		BaseURL:       srv.URL + "/v1",
		PrimaryModel:  "primary-model",
		FallbackModel: "fallback-model",
		Timeout:       5 * time.Second,
	}, nil)

	text, ok, err := r.CompleteJSON(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if !ok || text != "fallback response" {
		t.Fatalf("unexpected result: ok=%v text=%q", ok, text)
	}
	if primaryHits != 1 || fallbackHits != 1 {
		t.Fatalf("expected one hit each, got primary=%d fallback=%d", primaryHits, fallbackHits)
	}
}

func TestCompleteJSON_AllModelsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := New(Config{
		BaseURL:       srv.URL + "/v1",
		PrimaryModel:  "primary-model",
		FallbackModel: "fallback-model",
		Timeout:       5 * time.Second,
	}, nil)

	_, ok, err := r.CompleteJSON(context.Background(), []Message{{Role: "user", Content: "hi"}}, false)
	if ok {
		t.Fatalf("expected failure")
	}
	if err == nil {
		t.Fatalf("expected an error")
	}
}
