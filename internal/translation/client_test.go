package translation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/enesbasbug/async-translator/internal/prompt"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Options{
		BaseURL:    srv.URL + "/v1",
		APIKey:     "sk-test",
		Timeout:    timeout,
		HTTPClient: srv.Client(),
	}, zerolog.Nop())
}

func testRequest() Request {
	return Request{
		TaskID:   "task-1",
		Language: "fr",
		Prompt:   prompt.Messages{System: "be a translator", User: "Translate into fr: Hello"},
	}
}

func TestTranslate_SendsChatCompletion(t *testing.T) {
	t.Parallel()

	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected authorization header: %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"  Bonjour \n"}}]}`)
	}, time.Second)

	text, err := client.Translate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if text != "Bonjour" {
		t.Fatalf("unexpected translation: %q", text)
	}
	if got.Model != DefaultModel {
		t.Fatalf("unexpected model: %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	if got.Messages[1].Content != "Translate into fr: Hello" {
		t.Fatalf("unexpected user content: %q", got.Messages[1].Content)
	}
}

func TestTranslate_HTTPError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached"}}`)
	}, time.Second)

	_, err := client.Translate(context.Background(), testRequest())
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", httpErr.StatusCode)
	}
	if httpErr.Message != "Rate limit reached" {
		t.Fatalf("unexpected message: %q", httpErr.Message)
	}
	if httpErr.Body == "" {
		t.Fatalf("expected body to be kept for diagnostics")
	}
}

func TestTranslate_HTTPErrorBodyStaysValidUTF8(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("€", 3000)
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, body)
	}, time.Second)

	_, err := client.Translate(context.Background(), testRequest())
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %T: %v", err, err)
	}
	if len(httpErr.Body) > maxErrorBodyBytes {
		t.Fatalf("body not truncated: %d bytes", len(httpErr.Body))
	}
	if !utf8.ValidString(httpErr.Body) {
		t.Fatalf("truncated body is not valid UTF-8")
	}
	if !strings.HasPrefix(body, httpErr.Body) || httpErr.Body == "" {
		t.Fatalf("truncated body is not a prefix of the response")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{in: "hello", limit: 10, want: "hello"},
		{in: "hello", limit: 3, want: "hel"},
		{in: "a€b", limit: 2, want: "a"},
		{in: "a€b", limit: 4, want: "a€"},
		{in: "€", limit: 1, want: ""},
	}
	for _, tc := range tests {
		if got := truncate(tc.in, tc.limit); got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestTranslate_ProtocolErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>oops</html>`},
		{name: "no choices", body: `{"choices":[]}`},
		{name: "no content", body: `{"choices":[{"message":{"role":"assistant"}}]}`},
		{name: "blank content", body: `{"choices":[{"message":{"content":"   "}}]}`},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			}, time.Second)

			_, err := client.Translate(context.Background(), testRequest())
			var protoErr *ProtocolError
			if !errors.As(err, &protoErr) {
				t.Fatalf("expected ProtocolError, got %T: %v", err, err)
			}
		})
	}
}

func TestTranslate_TransportErrorOnTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := client.Translate(context.Background(), testRequest())
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
}

func TestTranslate_TransportErrorOnRefusedConnection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	client := NewClient(Options{BaseURL: baseURL, APIKey: "sk-test", Timeout: time.Second}, zerolog.Nop())
	_, err := client.Translate(context.Background(), testRequest())
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
}

func TestChatCompletionsURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                           "https://api.openai.com/v1/chat/completions",
		"https://api.openai.com/v1":  "https://api.openai.com/v1/chat/completions",
		"https://api.openai.com/v1/": "https://api.openai.com/v1/chat/completions",
		"http://127.0.0.1:8845":      "http://127.0.0.1:8845/v1/chat/completions",
		"http://proxy.local/openai/v1/chat/completions": "http://proxy.local/openai/v1/chat/completions",
		"llm.internal/v1": "https://llm.internal/v1/chat/completions",
	}
	for input, want := range tests {
		if got := chatCompletionsURL(input); got != want {
			t.Fatalf("chatCompletionsURL(%q) = %q, want %q", input, got, want)
		}
	}
}
