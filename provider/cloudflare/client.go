package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/mkarsli/cf-zone-provision/metrics"
	"github.com/mkarsli/cf-zone-provision/provider"
)

const (
	defaultBaseURL = "https://api.cloudflare.com/client/v4"
	defaultTimeout = 30 * time.Second

	// perPage bounds record listing; listing loops until a short page.
	perPage = 50
)

type Options struct {
	Token     string
	AccountID string
	BaseURL   string
	Timeout   time.Duration
}

// Client speaks the provider's v4 REST envelope directly. Transport
// failures are retried by the underlying retryable client; a success:false
// envelope is surfaced as *provider.APIError with the raw error payload.
type Client struct {
	baseURL   string
	token     string
	accountID string
	http      *retryablehttp.Client
	metrics   *metrics.Metrics
}

func New(opts Options, m *metrics.Metrics) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("cloudflare api token empty")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = opts.Timeout

	return &Client{
		baseURL:   opts.BaseURL,
		token:     opts.Token,
		accountID: opts.AccountID,
		http:      rc,
		metrics:   m,
	}, nil
}

type envelope struct {
	Success    bool                   `json:"success"`
	Result     json.RawMessage        `json:"result"`
	Errors     json.RawMessage        `json:"errors"`
	ResultInfo *cloudflare.ResultInfo `json:"result_info"`
}

func (e *envelope) apiError(status int) *provider.APIError {
	apiErr := &provider.APIError{
		Status: status,
		Raw:    e.Errors,
	}
	// Best effort: the errors payload is usually a list of {code, message}.
	_ = json.Unmarshal(e.Errors, &apiErr.Errors)
	return apiErr
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) (*envelope, error) {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", op, err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.IncAPIRequest(op, false)
		return nil, &provider.TransportError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.IncAPIRequest(op, false)
		return nil, &provider.TransportError{Op: op, URL: url, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.metrics.IncAPIRequest(op, false)
		return nil, &provider.TransportError{Op: op, URL: url, Err: fmt.Errorf("malformed response (status %d): %w", resp.StatusCode, err)}
	}

	if !env.Success {
		c.metrics.IncAPIRequest(op, false)
		return &env, env.apiError(resp.StatusCode)
	}
	c.metrics.IncAPIRequest(op, true)
	return &env, nil
}

func decodeResult[T any](env *envelope) (T, error) {
	var out T
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Result, &out); err != nil {
		return out, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}
