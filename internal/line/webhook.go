package line

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// TextMessage is an event the relay answers.
type TextMessage struct {
	UserID         string
	Text           string
	ReplyToken     string
	WebhookEventID string
	Redelivery     bool
	SentAt         time.Time
}

// Payload is a decoded webhook body. Skipped counts events that were not
// decodable at all.
type Payload struct {
	Destination string
	Events      []webhook.EventInterface
	Skipped     int
}

// ParseWebhook decodes the envelope strictly and each event leniently: one
// malformed event does not discard the rest of the batch.
func ParseWebhook(body []byte) (Payload, error) {
	var envelope struct {
		Destination string            `json:"destination"`
		Events      []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Payload{}, fmt.Errorf("decode webhook envelope: %w", err)
	}

	payload := Payload{
		Destination: envelope.Destination,
		Events:      make([]webhook.EventInterface, 0, len(envelope.Events)),
	}
	for _, raw := range envelope.Events {
		event, err := webhook.UnmarshalEvent(raw)
		if err != nil || event == nil {
			payload.Skipped++
			continue
		}
		payload.Events = append(payload.Events, event)
	}
	return payload, nil
}

// AsTextMessage reports whether event is a text message from a known user.
func AsTextMessage(event webhook.EventInterface) (TextMessage, bool) {
	e, ok := event.(webhook.MessageEvent)
	if !ok {
		return TextMessage{}, false
	}
	content, ok := e.Message.(webhook.TextMessageContent)
	if !ok {
		return TextMessage{}, false
	}
	userID := sourceUserID(e.Source)
	if strings.TrimSpace(userID) == "" {
		return TextMessage{}, false
	}

	message := TextMessage{
		UserID:         userID,
		Text:           content.Text,
		ReplyToken:     e.ReplyToken,
		WebhookEventID: e.WebhookEventId,
	}
	if e.DeliveryContext != nil {
		message.Redelivery = e.DeliveryContext.IsRedelivery
	}
	if e.Timestamp > 0 {
		message.SentAt = time.UnixMilli(e.Timestamp).UTC()
	}
	return message, true
}

func sourceUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	default:
		return ""
	}
}
