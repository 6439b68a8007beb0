package line

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	path     string
	auth     string
	retryKey string
	body     map[string]any
}

func newCaptureServer(t *testing.T, status int, response string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		captured = append(captured, capturedRequest{
			path:     r.URL.Path,
			auth:     r.Header.Get("Authorization"),
			retryKey: r.Header.Get("X-Line-Retry-Key"),
			body:     body,
		})
		w.Header().Set("X-Line-Request-Id", "req-1")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func TestClientReply(t *testing.T) {
	server, captured := newCaptureServer(t, http.StatusOK, `{}`)
	client, err := NewClient(ClientConfig{AccessToken: "token", BaseURL: server.URL + "/"})
	require.NoError(t, err)

	require.NoError(t, client.Reply(context.Background(), "reply-1", "早安呀"))

	require.Len(t, *captured, 1)
	got := (*captured)[0]
	assert.Equal(t, "/v2/bot/message/reply", got.path)
	assert.Equal(t, "Bearer token", got.auth)
	assert.Empty(t, got.retryKey)
	assert.Equal(t, "reply-1", got.body["replyToken"])
	messages := got.body["messages"].([]any)
	require.Len(t, messages, 1)
	message := messages[0].(map[string]any)
	assert.Equal(t, "text", message["type"])
	assert.Equal(t, "早安呀", message["text"])
}

func TestClientPush(t *testing.T) {
	server, captured := newCaptureServer(t, http.StatusOK, `{}`)
	client, err := NewClient(ClientConfig{AccessToken: "token", BaseURL: server.URL})
	require.NoError(t, err)

	require.NoError(t, client.Push(context.Background(), "U1", "hi"))

	got := (*captured)[0]
	assert.Equal(t, "/v2/bot/message/push", got.path)
	assert.Equal(t, "U1", got.body["to"])
	assert.NotEmpty(t, got.retryKey)
}

func TestClientAPIError(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusBadRequest, `{"message":"Invalid reply token"}`)
	client, err := NewClient(ClientConfig{AccessToken: "token", BaseURL: server.URL})
	require.NoError(t, err)

	err = client.Reply(context.Background(), "expired", "hi")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid reply token", apiErr.Message)
	assert.Equal(t, "req-1", apiErr.RequestID)
}

func TestClientValidatesInput(t *testing.T) {
	client, err := NewClient(ClientConfig{})
	require.NoError(t, err)
	assert.ErrorIs(t, client.Push(context.Background(), "U1", "hi"), ErrMissingToken)

	client, err = NewClient(ClientConfig{AccessToken: "token"})
	require.NoError(t, err)
	assert.Error(t, client.Reply(context.Background(), " ", "hi"))
	assert.Error(t, client.Push(context.Background(), "", "hi"))
}

func TestClientHonoursCancelledContext(t *testing.T) {
	server, captured := newCaptureServer(t, http.StatusOK, `{}`)
	client, err := NewClient(ClientConfig{AccessToken: "token", BaseURL: server.URL, RPS: 1, Burst: 1})
	require.NoError(t, err)
	require.NoError(t, client.Push(context.Background(), "U1", "first"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = client.Push(ctx, "U1", "second")

	require.Error(t, err)
	assert.Len(t, *captured, 1)
}
