package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyReturnsScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "transfer the money now", req.Text)
		json.NewEncoder(w).Encode(classifyResponse{Score: 0.82})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)
	score, err := client.Classify(context.Background(), "transfer the money now")

	require.NoError(t, err)
	assert.InDelta(t, 0.82, score, 1e-9)
}

func TestClassifyClampsOutOfRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(classifyResponse{Score: 1.7})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)
	score, err := client.Classify(context.Background(), "text")

	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestClassifyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(classifyResponse{Score: 0.4})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)
	score, err := client.Classify(context.Background(), "text")

	require.NoError(t, err)
	assert.InDelta(t, 0.4, score, 1e-9)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClassifyClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)
	_, err := client.Classify(context.Background(), "text")

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClassifyCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewHTTPClient(server.URL, time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := client.Classify(ctx, "text")
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("classify did not observe cancellation")
	}
}

func TestDisabledClassifier(t *testing.T) {
	_, err := Disabled{}.Classify(context.Background(), "text")
	assert.ErrorIs(t, err, ErrDisabled)
}
