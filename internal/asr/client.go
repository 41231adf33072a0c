// Package asr wraps the OpenAI-compatible speech API surface that
// soundcheck exercises: the model listing used for readiness and the
// audio transcription endpoint used by probes and the bench server.
package asr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultRequestTimeout bounds a single transcription round trip.
// First-request latency includes model warmup, so this is generous.
const DefaultRequestTimeout = 300 * time.Second

// Config holds client configuration.
type Config struct {
	// BaseURL is the server base, e.g. "http://127.0.0.1:8000".
	// The OpenAI path prefix (/v1) is appended automatically.
	BaseURL string

	// APIKey is sent as a bearer token. Local servers usually ignore it.
	APIKey string

	// RequestTimeout bounds one HTTP round trip. Zero means
	// DefaultRequestTimeout.
	RequestTimeout time.Duration
}

// Client talks to one OpenAI-compatible server.
type Client struct {
	api     *openai.Client
	baseURL string
}

// New creates a Client for the given server.
func New(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	apiConfig.BaseURL = apiBase(cfg.BaseURL)
	apiConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:     openai.NewClientWithConfig(apiConfig),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// apiBase normalizes a server base URL into the /v1 API root.
func apiBase(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

// BaseURL returns the server base the client was built for.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Models returns the ids of the models the server is serving.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// FirstModel returns the first served model id. The second return is
// false when the server answered but serves nothing yet.
func (c *Client) FirstModel(ctx context.Context) (string, bool, error) {
	ids, err := c.Models(ctx)
	if err != nil {
		return "", false, err
	}
	if len(ids) == 0 {
		return "", false, nil
	}
	return ids[0], true, nil
}

// Transcribe sends the audio file at path to the transcription endpoint
// and returns the transcript text.
func (c *Client) Transcribe(ctx context.Context, model, path string) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: path,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", path, err)
	}
	return resp.Text, nil
}

// TranscribeReader sends in-memory audio to the transcription endpoint.
// filename is a hint for the multipart part name and format detection.
func (c *Client) TranscribeReader(ctx context.Context, model string, r io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = "audio.wav"
	}

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		Reader:   r,
		FilePath: filename,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", filename, err)
	}
	return resp.Text, nil
}
