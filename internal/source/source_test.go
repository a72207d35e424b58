package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, s Source) string {
	t.Helper()
	rc, err := s.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestForPicksSource(t *testing.T) {
	t.Parallel()
	assert.IsType(t, &HTTP{}, For("https://example.org/a.csv", HTTPConfig{}))
	assert.IsType(t, &Local{}, For("data/a.csv", HTTPConfig{}))
	assert.Equal(t, "/tmp/a.csv", For("file:///tmp/a.csv", HTTPConfig{}).(*Local).String())
	assert.True(t, IsRemote("http://x/y"))
	assert.False(t, IsRemote("y.csv"))
}

/*
TestLocal verifies reading a file, the wrapped not-exist error and that a
cancelled context wins over the filesystem.
*/
func TestLocal(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "a.csv")
	require.NoError(t, os.WriteFile(p, []byte("core:AT\n1\n"), 0o644))
	assert.Equal(t, "core:AT\n1\n", readAll(t, NewLocal(p)))

	_, err := NewLocal(p + ".missing").Open(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewLocal(p).Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

/*
TestHTTPRetries verifies that transient statuses are retried until success
and that the body of the successful response is returned.
*/
func TestHTTPRetries(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "core:AT\n1\n")
	}))
	defer srv.Close()

	s := NewHTTP(srv.URL, HTTPConfig{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})
	assert.Equal(t, "core:AT\n1\n", readAll(t, s))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

/*
TestHTTPFailures verifies that a 4xx fails on the first attempt and that a
persistent 5xx gives up after the configured retries.
*/
func TestHTTPFailures(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := HTTPConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	_, err := NewHTTP(srv.URL+"/missing", cfg).Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	_, err = NewHTTP(srv.URL+"/flaky", cfg).Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestBackoff(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 100*time.Millisecond, backoff(100*time.Millisecond, 0, time.Second))
	assert.Equal(t, 400*time.Millisecond, backoff(100*time.Millisecond, 2, time.Second))
	assert.Equal(t, time.Second, backoff(100*time.Millisecond, 10, time.Second))
}
