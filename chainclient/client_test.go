package chainclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ar-io-observer/utils"
)

func fastRetry() utils.RetryPolicy {
	return utils.RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestGetHeight_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/height", r.URL.Path)
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("1234567\n"))
	}))
	defer server.Close()

	height, err := NewClient(server.URL).WithRetryPolicy(fastRetry()).GetHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1234567), height)
	require.Equal(t, int32(2), calls.Load())
}

func TestGetHeight_GivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).WithRetryPolicy(fastRetry()).GetHeight(context.Background())
	require.Error(t, err)
	require.Equal(t, int32(3), calls.Load())
}

func TestGetEntropySourceData(t *testing.T) {
	hash := []byte("0123456789abcdef0123456789abcdef0123456789abcdef")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/block/height/1000" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(Block{
			IndepHash: base64.RawURLEncoding.EncodeToString(hash),
			Height:    1000,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL).WithRetryPolicy(fastRetry())
	data, err := client.GetEntropySourceData(context.Background(), 1000)
	require.NoError(t, err)
	require.Equal(t, hash, data)

	_, err = client.GetEntropySourceData(context.Background(), 999)
	require.ErrorIs(t, err, utils.ErrNotFound)
}
