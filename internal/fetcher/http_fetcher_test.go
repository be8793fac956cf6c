package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch_SucceedsOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "crawld-test/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher("crawld-test/1.0")
	res, err := f.Fetch(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/html", res.ContentType)
	assert.Contains(t, res.Body, "ok")
}

func TestHTTPFetcher_Fetch_ClassifiesThrottleStatusesAsRetryable(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		f := NewHTTPFetcher("crawld-test/1.0")
		_, err := f.Fetch(context.Background(), srv.URL, time.Second)
		require.Error(t, err)
		var ferr *FetchError
		require.ErrorAs(t, err, &ferr)
		assert.Truef(t, ferr.Retryable, "status %d must be retryable", status)
		assert.Equal(t, status, ferr.Status)

		srv.Close()
	}
}

func TestHTTPFetcher_Fetch_ClassifiesClientErrorsAsFatal(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusBadRequest} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		f := NewHTTPFetcher("crawld-test/1.0")
		_, err := f.Fetch(context.Background(), srv.URL, time.Second)
		require.Error(t, err)
		var ferr *FetchError
		require.ErrorAs(t, err, &ferr)
		assert.Falsef(t, ferr.Retryable, "status %d must not be retryable", status)

		srv.Close()
	}
}

func TestHTTPFetcher_Fetch_ConnectionFailureIsRetryable(t *testing.T) {
	f := NewHTTPFetcher("crawld-test/1.0")
	// Port 1 is reserved and never accepts connections.
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/", 50*time.Millisecond)
	require.Error(t, err)
	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.True(t, ferr.Retryable)
}

func TestRetryAfter_ParsesSecondsForm(t *testing.T) {
	d := RetryAfter(map[string]string{"Retry-After": "30"}, time.Second)
	assert.Equal(t, 30*time.Second, d)
}

func TestRetryAfter_ParsesHTTPDateForm(t *testing.T) {
	future := time.Now().UTC().Add(2 * time.Minute)
	d := RetryAfter(map[string]string{"Retry-After": future.Format(http.TimeFormat)}, time.Second)
	assert.Greater(t, d, time.Minute)
}

func TestRetryAfter_FallsBackToDefaultWhenAbsentOrUnparsable(t *testing.T) {
	assert.Equal(t, 5*time.Second, RetryAfter(map[string]string{}, 5*time.Second))
	assert.Equal(t, 5*time.Second, RetryAfter(map[string]string{"Retry-After": "not-a-value"}, 5*time.Second))
}
