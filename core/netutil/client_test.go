package netutil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(errors.New("boom")))
	assert.True(t, ShouldRetry(timeoutErr{}))
	assert.True(t, ShouldRetry(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.True(t, ShouldRetry(&url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}))
	assert.False(t, ShouldRetry(&url.Error{Op: "Get", URL: "http://x", Err: errors.New("bad")}))
}

func TestShouldRetryStatus(t *testing.T) {
	assert.True(t, ShouldRetryStatus(http.StatusTooManyRequests))
	assert.True(t, ShouldRetryStatus(http.StatusBadGateway))
	assert.False(t, ShouldRetryStatus(http.StatusInternalServerError))
	assert.False(t, ShouldRetryStatus(http.StatusOK))
}

func TestRetryTransportRetriesStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := BuildHTTPClient(ClientOptions{Retries: 3, Backoff: time.Millisecond, RetryStatus: true})
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRetryTransportReturnsLastStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := BuildHTTPClient(ClientOptions{Retries: 1, Backoff: time.Millisecond, RetryStatus: true})
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRetryTransportStopsOnContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	client := BuildHTTPClient(ClientOptions{Retries: 5, Backoff: time.Second, RetryStatus: true})
	_, err = client.Do(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
