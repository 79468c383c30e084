package jury

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verdikta/external-adapter/internal/faults"
	"github.com/verdikta/external-adapter/internal/retry"
)

var fastPolicy = retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond}

func newTestClient(url string) *HTTPClient {
	c := NewHTTPClient(url, 5*time.Second, zap.NewNop())
	c.policy = fastPolicy
	return c
}

func TestRankAndJustifySuccess(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/rank-and-justify", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(Verdict{
			Scores:        []uint64{600000, 400000},
			Justification: "outcome one is better supported",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	verdict, err := c.RankAndJustify(context.Background(), &Request{
		Prompt:     "which outcome?",
		Outcomes:   []string{"yes", "no"},
		Iterations: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, []uint64{600000, 400000}, verdict.Scores)
	assert.Equal(t, "outcome one is better supported", verdict.Justification)
	assert.Equal(t, "which outcome?", got.Prompt)
}

func TestRankAndJustify4xxIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model list rejected", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.RankAndJustify(context.Background(), &Request{Outcomes: []string{"a", "b"}})
	require.Error(t, err)

	assert.Equal(t, faults.AIServiceRefused, faults.KindOf(err))
	assert.Contains(t, err.Error(), "model list rejected")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestRankAndJustify5xxRetriedOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(Verdict{Scores: []uint64{1000000}, Justification: "ok"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	verdict, err := c.RankAndJustify(context.Background(), &Request{Outcomes: []string{"only"}})
	require.NoError(t, err)

	assert.Equal(t, []uint64{1000000}, verdict.Scores)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestRankAndJustifyExhaustionIsUnavailable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.RankAndJustify(context.Background(), &Request{Outcomes: []string{"a"}})
	require.Error(t, err)

	assert.Equal(t, faults.AIServiceUnavailable, faults.KindOf(err))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestRankAndJustifyTransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := newTestClient(srv.URL)
	_, err := c.RankAndJustify(context.Background(), &Request{Outcomes: []string{"a"}})
	require.Error(t, err)
	assert.Equal(t, faults.AIServiceUnavailable, faults.KindOf(err))
}

func TestRankAndJustifyScoreCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Verdict{Scores: []uint64{500000}, Justification: "partial"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.RankAndJustify(context.Background(), &Request{Outcomes: []string{"a", "b", "c"}})
	require.Error(t, err)
	assert.Equal(t, faults.AIServiceUnavailable, faults.KindOf(err))
	assert.Contains(t, err.Error(), "1 scores for 3 outcomes")
}

func TestMockClientRecordsRequests(t *testing.T) {
	m := NewMockClient([]uint64{700000, 300000}, "canned")

	verdict, err := m.RankAndJustify(context.Background(), &Request{Outcomes: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []uint64{700000, 300000}, verdict.Scores)
	assert.Equal(t, 1, m.Calls())
	assert.Equal(t, []string{"a", "b"}, m.LastRequest().Outcomes)

	// Score vector is sized to the request's outcomes.
	verdict, err = m.RankAndJustify(context.Background(), &Request{Outcomes: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, []uint64{700000, 300000, 0}, verdict.Scores)
}
