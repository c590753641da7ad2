package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// maxBodyBytes caps the response size read from the backend.
const maxBodyBytes = 8 << 20

// BreakerConfig configures the circuit breaker around the transport.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" validate:"gte=1"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	FailureThreshold float64       `yaml:"failure_threshold" validate:"gt=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests" validate:"gte=1"`
}

// DefaultBreakerConfig returns the default circuit breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// Token is sent as a bearer token when non-empty.
	Token      string
	Timeout    time.Duration
	Retry      RetryConfig
	Breaker    BreakerConfig
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Response is a successfully fetched knowledge graph.
type Response struct {
	Payload    Payload
	Body       []byte
	StatusCode int
	RequestID  string
	Latency    time.Duration
}

// Client fetches knowledge graphs from the learning backend.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
	logger  *zap.Logger
}

// NewClient creates a Client for the backend at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("api base URL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api base URL must be http or https, got %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := opts.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	breakerCfg := opts.Breaker
	if breakerCfg.Timeout <= 0 {
		breakerCfg = DefaultBreakerConfig()
	}

	c := &Client{
		baseURL: base,
		token:   opts.Token,
		http:    httpClient,
		retry:   retry,
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "knowledge-graph",
		MaxRequests: breakerCfg.MaxRequests,
		Interval:    breakerCfg.Interval,
		Timeout:     breakerCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerCfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= breakerCfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Client errors say nothing about backend health.
			var se *ErrStatus
			if errors.As(err, &se) {
				return !se.Temporary()
			}
			return err == nil
		},
	})
	return c, nil
}

// GraphURL returns the knowledge-graph endpoint for a class.
func (c *Client) GraphURL(classID string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/user/enrolled-class/" + ClassPathParam(classID) + "/knowledge-graph"
	u.RawPath = ""
	return u.String()
}

// ClassPathParam normalizes a class id for use in a URL path: numeric ids
// are rendered canonically, anything else is path-escaped.
func ClassPathParam(classID string) string {
	trimmed := strings.TrimSpace(classID)
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return url.PathEscape(classID)
}

// FetchGraph retrieves and decodes the knowledge graph for a class.
// Transient failures are retried; the last error is returned.
func (c *Client) FetchGraph(ctx context.Context, classID string) (*Response, error) {
	var resp *Response
	err := withRetry(ctx, c.retry, func(attempt int) error {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetchOnce(ctx, classID)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return &ErrUnavailable{Err: ErrBreakerOpen}
			}
			c.logger.Debug("knowledge graph fetch attempt failed",
				zap.String("class_id", classID),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			return err
		}
		resp = out.(*Response)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) fetchOnce(ctx context.Context, classID string) (*Response, error) {
	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GraphURL(classID), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ErrUnavailable{Err: err}
	}
	defer httpResp.Body.Close()

	// One byte past the cap tells a full body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &ErrUnavailable{Err: fmt.Errorf("read body: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &ErrStatus{StatusCode: httpResp.StatusCode, Body: snippet(body)}
	}
	if len(body) > maxBodyBytes {
		return nil, &ErrDecode{Err: fmt.Errorf("response too large (over %d bytes)", maxBodyBytes)}
	}

	payload, err := DecodePayload(body)
	if err != nil {
		return nil, err
	}

	return &Response{
		Payload:    payload,
		Body:       body,
		StatusCode: httpResp.StatusCode,
		RequestID:  requestID,
		Latency:    time.Since(start),
	}, nil
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "…"
	}
	return s
}
