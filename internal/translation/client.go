package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/enesbasbug/async-translator/internal/prompt"
)

const (
	// DefaultBaseURL is the OpenAI API root; the client appends /chat/completions.
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the completion model used for every translation.
	DefaultModel = "gpt-4-turbo"
	// DefaultTimeout bounds one translation request.
	DefaultTimeout = 60 * time.Second

	maxErrorBodyBytes = 4 << 10
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Request is one translation of a rendered prompt into Language.
// TaskID is only used for log context.
type Request struct {
	TaskID   string
	Language string
	Prompt   prompt.Messages
}

// Client issues chat-completion calls against an OpenAI-compatible endpoint.
type Client struct {
	endpointURL string
	apiKey      string
	model       string
	http        *http.Client
	logger      zerolog.Logger
}

func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		httpClient = &copied
	}
	httpClient.Timeout = timeout

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		endpointURL: chatCompletionsURL(opts.BaseURL),
		apiKey:      strings.TrimSpace(opts.APIKey),
		model:       model,
		http:        httpClient,
		logger:      logger.With().Str("component", "translation_client").Logger(),
	}
}

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Translate sends one completion request and returns the trimmed completion text.
// Failures are logged and returned as *HTTPError, *TransportError or *ProtocolError.
// Nothing is retried.
func (c *Client) Translate(ctx context.Context, req Request) (string, error) {
	if c == nil {
		return "", fmt.Errorf("translation client is nil")
	}

	started := time.Now()
	text, err := c.complete(ctx, req)
	if err != nil {
		event := c.logger.Error().
			Err(err).
			Str("task_id", req.TaskID).
			Str("language", req.Language).
			Dur("latency", time.Since(started))
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			event = event.Int("status", httpErr.StatusCode).Str("body", httpErr.Body)
		}
		event.Msg("translation request failed")
		return "", err
	}

	c.logger.Debug().
		Str("task_id", req.TaskID).
		Str("language", req.Language).
		Dur("latency", time.Since(started)).
		Msg("translation request completed")
	return text, nil
}

func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.Prompt.System},
			{Role: "user", Content: req.Prompt.User},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &TransportError{Op: "send completion request", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: "read completion response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(respBody)), maxErrorBodyBytes),
		}
		var errPayload chatErrorResponse
		if json.Unmarshal(respBody, &errPayload) == nil {
			httpErr.Message = strings.TrimSpace(errPayload.Error.Message)
		}
		return "", httpErr
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &ProtocolError{Reason: "decode body", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProtocolError{Reason: "missing choices"}
	}
	content := parsed.Choices[0].Message.Content
	if content == nil {
		return "", &ProtocolError{Reason: "missing choices[0].message.content"}
	}
	translated := strings.TrimSpace(*content)
	if translated == "" {
		return "", &ProtocolError{Reason: "empty completion"}
	}
	return translated, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func chatCompletionsURL(base string) string {
	raw := strings.TrimSpace(base)
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return DefaultBaseURL + "/chat/completions"
	}

	path := strings.TrimRight(parsed.Path, "/")
	switch {
	case strings.HasSuffix(path, "/chat/completions"):
		parsed.Path = path
	case path == "":
		parsed.Path = "/v1/chat/completions"
	default:
		parsed.Path = path + "/chat/completions"
	}
	return parsed.String()
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
