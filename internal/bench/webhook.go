package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iago/line-relay/internal/line"
)

var sampleTexts = []string{
	"早安",
	"晚安，我要睡覺了",
	"好想你",
	"嗨",
	"今天好累",
	"谢谢",
	"今天吃了拉麵",
}

// WebhookPoster sends single-event text webhooks, signed when Secret is set.
type WebhookPoster struct {
	Client *http.Client
	URL    string
	Secret string
	Users  int
}

func (p WebhookPoster) Post(ctx context.Context, index int) error {
	users := p.Users
	if users <= 0 {
		users = 1
	}
	body, err := BuildWebhook(
		fmt.Sprintf("Ubench%05d", index%users),
		sampleTexts[index%len(sampleTexts)],
		time.Now(),
	)
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(p.URL, "/")+"/webhook", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if p.Secret != "" {
		request.Header.Set(line.SignatureHeader, line.Sign(p.Secret, body))
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", response.StatusCode, string(raw))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

// Wire shape of a LINE text message webhook, as the platform sends it.
type webhookBody struct {
	Destination string         `json:"destination"`
	Events      []webhookEvent `json:"events"`
}

type webhookEvent struct {
	Type            string          `json:"type"`
	Mode            string          `json:"mode"`
	Timestamp       int64           `json:"timestamp"`
	WebhookEventID  string          `json:"webhookEventId"`
	ReplyToken      string          `json:"replyToken"`
	Source          webhookSource   `json:"source"`
	Message         webhookText     `json:"message"`
	DeliveryContext webhookDelivery `json:"deliveryContext"`
}

type webhookSource struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type webhookText struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type webhookDelivery struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// BuildWebhook encodes a one-event text message payload with a unique
// event id.
func BuildWebhook(userID, text string, sentAt time.Time) ([]byte, error) {
	eventID := uuid.NewString()
	payload := webhookBody{
		Destination: "Ubench",
		Events: []webhookEvent{{
			Type:            "message",
			Mode:            "active",
			Timestamp:       sentAt.UnixMilli(),
			WebhookEventID:  eventID,
			ReplyToken:      "bench-" + eventID,
			Source:          webhookSource{Type: "user", UserID: userID},
			Message:         webhookText{ID: eventID, Type: "text", Text: text},
			DeliveryContext: webhookDelivery{},
		}},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook: %w", err)
	}
	return encoded, nil
}
