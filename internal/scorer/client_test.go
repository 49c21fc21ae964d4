package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreReturnsAlignedScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/score", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, uint(42), req.UserID)

		scores := make([]float64, len(req.PostIDs))
		for i, id := range req.PostIDs {
			scores[i] = float64(id) / 10
		}
		_ = json.NewEncoder(w).Encode(scoreResponse{Scores: scores})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL + "/"})
	require.True(t, c.Enabled())

	scores, err := c.Score(context.Background(), 42, []uint{1, 5})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.5}, scores)
	assert.Equal(t, "closed", c.State())
}

func TestScoreRejectsMisalignedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{1}})
	}))
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}).Score(context.Background(), 1, []uint{1, 2})
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestDisabledClient(t *testing.T) {
	c := New(Config{})
	assert.False(t, c.Enabled())
	assert.Equal(t, "disabled", c.State())

	_, err := c.Score(context.Background(), 1, []uint{1})
	assert.ErrorIs(t, err, ErrDisabled)

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, FailureThreshold: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Score(ctx, 1, []uint{1})
		require.Error(t, err)
		var se *statusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusInternalServerError, se.status)
	}

	_, err := c.Score(ctx, 1, []uint{1})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
	assert.Equal(t, "open", c.State())
}

func TestScoreEmptyBatchSkipsNetwork(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"})
	scores, err := c.Score(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}
