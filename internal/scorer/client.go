package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/zfogg/reelrank/internal/logger"
	"github.com/zfogg/reelrank/internal/metrics"
	"github.com/zfogg/reelrank/internal/telemetry"
	"go.uber.org/zap"
)

const serviceName = "model-scorer"

var (
	// ErrDisabled is returned when no scorer URL is configured.
	ErrDisabled = errors.New("model scorer disabled")

	// ErrMisaligned is returned when the scorer answers with the wrong number of scores.
	ErrMisaligned = errors.New("model scorer returned misaligned scores")
)

// Config configures the remote scorer client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// FailureThreshold consecutive failures open the breaker for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration

	Transport http.RoundTripper
}

// Client calls a remote learned model that scores posts for a user.
type Client struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]float64]
}

type scoreRequest struct {
	UserID  uint   `json:"user_id"`
	PostIDs []uint `json:"post_ids"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// New creates a client. An empty BaseURL yields a disabled client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{
			ServiceName: serviceName,
			Timeout:     cfg.Timeout,
			Transport:   cfg.Transport,
		}),
		breaker: gobreaker.NewCircuitBreaker[[]float64](settings),
	}
}

// Enabled reports whether a scorer is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// State returns the breaker state for health reporting.
func (c *Client) State() string {
	if !c.Enabled() {
		return "disabled"
	}
	return c.breaker.State().String()
}

// Score returns one score per post id, aligned with postIDs.
func (c *Client) Score(ctx context.Context, userID uint, postIDs []uint) ([]float64, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if len(postIDs) == 0 {
		return []float64{}, nil
	}

	ctx, span := telemetry.TraceExternalCall(ctx, telemetry.ExternalServiceCallAttrs{
		Service:                 serviceName,
		Operation:               "score",
		ResourceID:              strconv.FormatUint(uint64(userID), 10),
		CircuitBreakerTriggered: c.breaker.State() == gobreaker.StateOpen,
	})
	defer span.End()

	start := time.Now()
	scores, err := c.breaker.Execute(func() ([]float64, error) {
		return c.score(ctx, userID, postIDs)
	})
	m := metrics.Get()
	m.ScorerRequestDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		m.ScorerRequestsTotal.WithLabelValues("open").Inc()
		telemetry.RecordExternalCallError(span, err, 0, true)
		return nil, err
	case err != nil:
		m.ScorerRequestsTotal.WithLabelValues("error").Inc()
		var se *statusError
		status := 0
		if errors.As(err, &se) {
			status = se.status
		}
		telemetry.RecordExternalCallError(span, err, status, false)
		return nil, err
	}

	m.ScorerRequestsTotal.WithLabelValues("success").Inc()
	telemetry.RecordExternalCallSuccess(span, http.StatusOK, len(scores))
	return scores, nil
}

func (c *Client) score(ctx context.Context, userID uint, postIDs []uint) ([]float64, error) {
	resp, err := c.makeRequest(ctx, http.MethodPost, "/score", scoreRequest{UserID: userID, PostIDs: postIDs})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode scorer response: %w", err)
	}
	if len(out.Scores) != len(postIDs) {
		return nil, fmt.Errorf("%w: got %d for %d posts", ErrMisaligned, len(out.Scores), len(postIDs))
	}
	return out.Scores, nil
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("model scorer error: status %d", e.status)
}

func (c *Client) makeRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &statusError{status: resp.StatusCode}
	}

	return resp, nil
}
