package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/duzelt/duzelt-backend/pkg/config"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
)

func testConfig(baseURL string) config.OllamaConfig {
	return config.OllamaConfig{
		BaseURL:     baseURL,
		Model:       "test-model",
		KeepAlive:   "10m",
		NumPredict:  180,
		Temperature: 0.1,
		TopP:        0.9,
	}
}

func TestChatReturnsMessageContent(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"content": "Salam, necəsən?"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	out, err := client.Chat(context.Background(), []Message{
		{Role: "system", Content: "Only Azerbaijani (az). Output only the final text."},
		{Role: "user", Content: "salam necesen"},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out != "Salam, necəsən?" {
		t.Fatalf("unexpected content %q", out)
	}
	if captured.Model != "test-model" {
		t.Fatalf("unexpected model %q", captured.Model)
	}
	if captured.Stream {
		t.Fatal("expected non-streaming request")
	}
	if captured.Options.Temperature != 0.1 || captured.Options.TopP != 0.9 {
		t.Fatalf("unexpected options %+v", captured.Options)
	}
}

func TestChatNonSuccessIsDependencyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Chat(context.Background(), []Message{{Role: "user", Content: "x"}})
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected diagnostic details, got %v", typed.Details())
	}
	if details["status"] != http.StatusBadGateway {
		t.Fatalf("expected upstream status in details, got %v", details["status"])
	}
}

func TestNewClientRequiresBaseURLAndModel(t *testing.T) {
	if _, err := NewClient(config.OllamaConfig{Model: "m"}); err == nil {
		t.Fatal("expected error without base url")
	}
	if _, err := NewClient(config.OllamaConfig{BaseURL: "http://localhost"}); err == nil {
		t.Fatal("expected error without model")
	}
}
