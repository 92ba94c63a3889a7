package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"height": 12}`))
		case "/broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewHttpClient(5 * time.Second)

	var out struct {
		Height int64 `json:"height"`
	}
	require.NoError(t, GetJSON(context.Background(), client, server.URL+"/ok", &out))
	require.Equal(t, int64(12), out.Height)

	err := GetJSON(context.Background(), client, server.URL+"/missing", &out)
	require.True(t, errors.Is(err, ErrNotFound))

	err = GetJSON(context.Background(), client, server.URL+"/broken", &out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestSendPostJsonRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	resp, err := SendPostJsonRequest(context.Background(), NewHttpClient(time.Second), server.URL, map[string]string{"a": "b"})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}
