package hosted_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/provider/hosted"
)

func newAdapter(serverURL, apiKey string) *hosted.Adapter {
	return hosted.New("deepseek/hosted", hosted.Config{
		BaseURL: serverURL,
		APIKey:  apiKey,
		Model:   "deepseek-r1",
		Timeout: 5,
	})
}

func messages() []domain.Message {
	return []domain.Message{{Role: domain.RoleUser, Content: "hello"}}
}

func TestAdapter_Complete(t *testing.T) {
	t.Run("should return the generated output", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody map[string]interface{}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_ = json.NewEncoder(w).Encode(map[string]string{"output": "hi there"})
		}))
		defer server.Close()

		adapter := newAdapter(server.URL, "hosted-key")
		output, err := adapter.Complete(context.Background(), messages())

		require.NoError(t, err)
		require.Equal(t, "hi there", output)
		require.Equal(t, "/run/deepseek-r1", gotPath)
		require.Equal(t, "Bearer hosted-key", gotAuth)
		require.Contains(t, gotBody, "messages")
	})

	t.Run("should omit the authorization header when keyless", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(map[string]string{"output": "ok"})
		}))
		defer server.Close()

		adapter := newAdapter(server.URL, "")
		_, err := adapter.Complete(context.Background(), messages())

		require.NoError(t, err)
		require.Empty(t, gotAuth)
	})

	t.Run("should carry the status code on non-2xx responses", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model cold", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		adapter := newAdapter(server.URL, "")
		_, err := adapter.Complete(context.Background(), messages())

		var upstream *domain.UpstreamError
		require.ErrorAs(t, err, &upstream)
		require.Equal(t, http.StatusServiceUnavailable, upstream.StatusCode)
		require.Equal(t, "deepseek/hosted", upstream.Tier)
	})

	t.Run("should fail on an in-band error field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "queue is full"})
		}))
		defer server.Close()

		adapter := newAdapter(server.URL, "")
		_, err := adapter.Complete(context.Background(), messages())

		require.Error(t, err)
		require.Contains(t, err.Error(), "queue is full")
	})

	t.Run("should fail on empty output", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"output": ""})
		}))
		defer server.Close()

		adapter := newAdapter(server.URL, "")
		_, err := adapter.Complete(context.Background(), messages())

		require.ErrorIs(t, err, hosted.ErrEmptyOutput)
	})
}

func TestAdapter_Stream(t *testing.T) {
	t.Run("should yield the full result as a single increment", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"output": "complete answer"})
		}))
		defer server.Close()

		adapter := newAdapter(server.URL, "")
		chunks, err := adapter.Stream(context.Background(), messages())
		require.NoError(t, err)

		first := <-chunks
		require.Equal(t, "complete answer", first.Delta)
		require.False(t, first.Done)

		second := <-chunks
		require.True(t, second.Done)

		_, open := <-chunks
		require.False(t, open)
	})

	t.Run("should fail synchronously when the call fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer server.Close()

		adapter := newAdapter(server.URL, "")
		chunks, err := adapter.Stream(context.Background(), messages())

		require.Error(t, err)
		require.Nil(t, chunks)

		var upstream *domain.UpstreamError
		require.True(t, errors.As(err, &upstream))
	})
}
