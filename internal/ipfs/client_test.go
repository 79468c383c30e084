package ipfs

import (
	"context"
	"io"
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

func newTestClient(gatewayURL, pinURL, pinKey string) *Client {
	c := NewClient(gatewayURL, pinURL, pinKey, zap.NewNop())
	c.fetchPolicy = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond}
	c.pinPolicy = retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond}
	return c
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ipfs/bafyA", r.URL.Path)
		w.Write([]byte("archive bytes"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	data, err := c.Fetch(context.Background(), "bafyA")
	require.NoError(t, err)
	assert.Equal(t, []byte("archive bytes"), data)
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Gateways 404 while content propagates; the client keeps trying.
		if atomic.AddInt32(&calls, 1) < 3 {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("eventually"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	data, err := c.Fetch(context.Background(), "bafyA")
	require.NoError(t, err)
	assert.Equal(t, []byte("eventually"), data)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchExhaustionIsCIDNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	_, err := c.Fetch(context.Background(), "bafyMissing")
	require.Error(t, err)
	assert.Equal(t, faults.CIDNotFound, faults.KindOf(err))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchServerErrorRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	data, err := c.Fetch(context.Background(), "bafyA")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
}

func TestPinUploadsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "justification.tar.gz", header.Filename)

		body, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("tarball"), body)

		w.Write([]byte(`{"cid":"bafyPinned","size":7}`))
	}))
	defer srv.Close()

	c := newTestClient("http://unused", srv.URL, "sekrit")
	cid, err := c.Pin(context.Background(), "justification.tar.gz", []byte("tarball"))
	require.NoError(t, err)
	assert.Equal(t, "bafyPinned", cid)
}

func TestPinFailureIsPublishFailed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient("http://unused", srv.URL, "")
	_, err := c.Pin(context.Background(), "justification.tar.gz", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, faults.PublishFailed, faults.KindOf(err))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestPinWithoutServiceConfigured(t *testing.T) {
	c := newTestClient("http://unused", "", "")
	_, err := c.Pin(context.Background(), "justification.tar.gz", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, faults.PublishFailed, faults.KindOf(err))
}
