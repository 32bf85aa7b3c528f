package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolCheckerNilPool(t *testing.T) {
	check := PoolChecker(nil)
	assert.Error(t, check())
}

func TestRedisCheckerNilClient(t *testing.T) {
	check := RedisChecker(nil)
	assert.Error(t, check())
}

func TestHTTPEndpointChecker(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    bool
	}{
		{"healthy endpoint", http.StatusOK, false},
		{"redirect is healthy", http.StatusFound, false},
		{"client error is unhealthy", http.StatusNotFound, true},
		{"server error is unhealthy", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			check := HTTPEndpointChecker(server.URL)
			err := check()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPEndpointCheckerUnreachable(t *testing.T) {
	check := HTTPEndpointCheckerWithConfig("http://127.0.0.1:1", CheckerConfig{Timeout: 200 * time.Millisecond})
	assert.Error(t, check())
}

func TestCachedCheckerReusesResult(t *testing.T) {
	var calls int32
	underlying := Checker(func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	cached := NewCachedChecker(underlying, time.Minute)
	require.NoError(t, cached.Check())
	require.NoError(t, cached.Check())
	require.NoError(t, cached.Check())

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCachedCheckerExpiresResult(t *testing.T) {
	var calls int32
	failure := errors.New("down")
	underlying := Checker(func() error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return failure
		}
		return nil
	})

	cached := NewCachedChecker(underlying, time.Nanosecond)
	assert.ErrorIs(t, cached.Check(), failure)

	time.Sleep(time.Millisecond)
	assert.NoError(t, cached.Check())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
