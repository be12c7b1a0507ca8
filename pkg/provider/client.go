// Package provider calls the upstream OpenAI-compatible chat completion
// endpoint and classifies its failures.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/pario-ai/inserter/pkg/models"
)

// Defaults for the upstream endpoint.
const (
	DefaultBaseURL = "https://api.vveai.com"
	DefaultModel   = "deepseek-chat"
)

const (
	completionsPath = "/v1/chat/completions"
	modelsPath      = "/v1/models"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt, credential string) (string, error)
}

// Client talks to one OpenAI-compatible upstream. It sends exactly one
// request per call and never retries.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a client-wide request timeout on a copy of the HTTP client,
// whichever order it is given in relative to WithHTTPClient. Zero keeps the
// client's own timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client. Empty baseURL or model fall back to the defaults.
func New(baseURL, model string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    http.DefaultClient,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

// Model returns the model name sent upstream.
func (c *Client) Model() string { return c.model }

// Generate requests a completion for prompt and returns the first choice's
// content with surrounding whitespace trimmed. Failures are *Error values.
// The credential must be non-empty; callers check that first.
func (c *Client) Generate(ctx context.Context, prompt, credential string) (string, error) {
	payload, err := json.Marshal(models.NewPromptRequest(c.model, prompt))
	if err != nil {
		return "", &Error{Kind: KindTransportOrServer, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Kind: KindTransportOrServer, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("upstream request failed")
		return "", &Error{Kind: KindTransportOrServer, Err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindTransportOrServer, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	log := c.log.With().Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Logger()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := classifyStatus(resp.StatusCode)
		log.Warn().Str("kind", kind.String()).Msg("upstream returned error status")
		return "", &Error{Kind: kind, StatusCode: resp.StatusCode, Err: fmt.Errorf("upstream error: %s", snippet(body))}
	}

	text, err := extractContent(body)
	if err != nil {
		log.Warn().Err(err).Msg("malformed upstream response")
		return "", &Error{Kind: KindMalformedResponse, StatusCode: resp.StatusCode, Err: err}
	}

	log.Debug().
		Int64("total_tokens", gjson.GetBytes(body, "usage.total_tokens").Int()).
		Msg("upstream completion")
	return strings.TrimSpace(text), nil
}

// ValidateCredential reports whether the upstream accepts credential. Any
// non-2xx status is invalid; a transport failure is also reported as err.
func (c *Client) ValidateCredential(ctx context.Context, credential string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+modelsPath, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("validating credential: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

var errMissingContent = errors.New("response has no choices[0].message.content")

func extractContent(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errors.New("response body is not valid JSON")
	}
	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() || content.Type != gjson.String {
		return "", errMissingContent
	}
	return content.String(), nil
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

var _ Generator = (*Client)(nil)
