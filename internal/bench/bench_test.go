package bench

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iago/line-relay/internal/line"
)

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.Equal(t, 5.0, Percentile(values, 0.50))
	assert.Equal(t, 10.0, Percentile(values, 0.95))
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 10.0, Percentile(values, 1))
	assert.Zero(t, Percentile(nil, 0.5))
}

func TestRunScenarioCountsOutcomes(t *testing.T) {
	var calls atomic.Int32
	result := RunScenario("mixed", 20, 4, func(index int) error {
		calls.Add(1)
		if index%5 == 0 {
			return errors.New("boom")
		}
		return nil
	})

	assert.Equal(t, int32(20), calls.Load())
	assert.Equal(t, 20, result.Total)
	assert.Equal(t, 16, result.Success)
	assert.Equal(t, 4, result.Errors)
	assert.Len(t, result.ErrorSamples, 4)
	assert.LessOrEqual(t, result.P50MS, result.MaxMS)
}

func TestRunScenarioEmpty(t *testing.T) {
	result := RunScenario("none", 0, 3, func(int) error { return nil })
	assert.Equal(t, ScenarioResult{Name: "none"}, result)
}

func TestWebhookPosterSignsPayload(t *testing.T) {
	var valid atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		payload, err := line.ParseWebhook(body)
		if err == nil && len(payload.Events) == 1 && webhook.ValidateSignature("secret", r.Header.Get(line.SignatureHeader), body) {
			if _, ok := line.AsTextMessage(payload.Events[0]); ok {
				valid.Add(1)
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	poster := WebhookPoster{Client: server.Client(), URL: server.URL, Secret: "secret", Users: 3}
	for i := 0; i < 5; i++ {
		require.NoError(t, poster.Post(context.Background(), i))
	}
	assert.Equal(t, int32(5), valid.Load())
}

func TestWebhookPosterReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := WebhookPoster{Client: server.Client(), URL: server.URL}.Post(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestBuildWebhookUsesUniqueEventIDs(t *testing.T) {
	first, err := BuildWebhook("U1", "hi", time.Now())
	require.NoError(t, err)
	second, err := BuildWebhook("U1", "hi", time.Now())
	require.NoError(t, err)

	a, err := line.ParseWebhook(first)
	require.NoError(t, err)
	b, err := line.ParseWebhook(second)
	require.NoError(t, err)
	require.Len(t, a.Events, 1)
	require.Len(t, b.Events, 1)

	ma, ok := line.AsTextMessage(a.Events[0])
	require.True(t, ok)
	mb, ok := line.AsTextMessage(b.Events[0])
	require.True(t, ok)
	assert.NotEmpty(t, ma.WebhookEventID)
	assert.NotEqual(t, ma.WebhookEventID, mb.WebhookEventID)
	assert.Equal(t, "U1", ma.UserID)
}
