package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/allaspectsdev/legalsmart/internal/tracing"
)

const (
	// DefaultAPIBase is the Anthropic API origin.
	DefaultAPIBase = "https://api.anthropic.com"
	// DefaultAPIVersion is sent as the anthropic-version header.
	DefaultAPIVersion = "2023-06-01"

	maxResponseBytes = 10 << 20
)

// AnthropicOptions configures an AnthropicClient.
type AnthropicOptions struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	// ModelIDs overrides the catalogue API identifiers per model.
	ModelIDs map[Model]string
	// HTTPClient replaces the default pooled client when set.
	HTTPClient *http.Client
}

// AnthropicClient is a Caller backed by the Anthropic Messages API.
type AnthropicClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	version string
	ids     map[Model]string
}

var _ Caller = (*AnthropicClient)(nil)

// NewAnthropicClient creates a client. An empty APIKey is rejected.
func NewAnthropicClient(opts AnthropicOptions) (*AnthropicClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("llm: anthropic api key is empty")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAPIBase
	}
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			Timeout: opts.Timeout,
		}
	}

	ids := make(map[Model]string, len(opts.ModelIDs))
	for m, id := range opts.ModelIDs {
		if id != "" {
			ids[m] = id
		}
	}

	return &AnthropicClient{
		client:  client,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		version: opts.APIVersion,
		ids:     ids,
	}, nil
}

// ModelID returns the API identifier used for m.
func (c *AnthropicClient) ModelID(m Model) string {
	if id, ok := c.ids[m]; ok {
		return id
	}
	return m.ID()
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage Usage `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one Messages request and classifies the outcome.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) Result {
	body, err := json.Marshal(messagesRequest{
		Model:       c.ModelID(req.Model),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return Fatal(fmt.Sprintf("encoding request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Fatal(fmt.Sprintf("creating request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", c.version)
	tracing.InjectHeaders(ctx, httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Fatal(fmt.Sprintf("request cancelled: %v", ctx.Err()))
		}
		return Retryable(fmt.Sprintf("transport: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		r := Retryable(fmt.Sprintf("reading response: %v", err))
		r.StatusCode = resp.StatusCode
		return r
	}

	if resp.StatusCode != http.StatusOK {
		return classifyError(resp, raw)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		r := Fatal(fmt.Sprintf("decoding response: %v", err))
		r.StatusCode = resp.StatusCode
		return r
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		r := Fatal("empty response content")
		r.StatusCode = resp.StatusCode
		return r
	}

	r := Success(sb.String())
	r.StatusCode = resp.StatusCode
	r.Usage = parsed.Usage
	return r
}

func classifyError(resp *http.Response, raw []byte) Result {
	reason := http.StatusText(resp.StatusCode)
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
		reason = e.Error.Type + ": " + e.Error.Message
	}

	var r Result
	if isRetryableStatus(resp.StatusCode) {
		r = Retryable(reason)
		r.RetryAfter = retryAfterDuration(resp)
	} else {
		r = Fatal(reason)
	}
	r.StatusCode = resp.StatusCode
	return r
}

// StatusOverloaded is Anthropic's non-standard "overloaded" status.
const StatusOverloaded = 529

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		StatusOverloaded:
		return true
	default:
		return false
	}
}
