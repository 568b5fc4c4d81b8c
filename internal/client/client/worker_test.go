package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/storyqueue/internal/worker/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerClient_RoundTrip(t *testing.T) {
	var posted []byte
	mux := http.NewServeMux()
	mux.HandleFunc("POST /__worker/clients", func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/", req.URL)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c-1"}`))
	})
	mux.HandleFunc("POST /__worker/clients/c-1/messages", func(w http.ResponseWriter, r *http.Request) {
		posted, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /__worker/clients/c-1/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"type":"push-mock-result","ok":false,"reason":"permission denied"}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewWorkerClient(srv.URL, time.Second)
	ctx := context.Background()

	id, err := c.RegisterClient(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, "c-1", id)

	require.NoError(t, c.PostMessage(ctx, id, message.PushMock{Title: "t"}))
	assert.JSONEq(t, `{"type":"push-mock","data":{"title":"t"}}`, string(posted))

	msgs, err := c.Messages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, message.PushMockResult{OK: false, Reason: "permission denied"}, msgs[0])
}

func TestWorkerClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unknown client"}`))
	}))
	c := NewWorkerClient(srv.URL, time.Second)
	ctx := context.Background()

	_, err := c.Messages(ctx, "missing")
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "unknown client")

	srv.Close()
	_, err = c.RegisterClient(ctx, "/")
	require.ErrorIs(t, err, ErrUnavailable)
}
