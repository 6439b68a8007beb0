// Package line delivers replies through the LINE Messaging API and decodes
// its webhook payloads.
package line

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.line.me"

var ErrMissingToken = errors.New("line channel access token is not configured")

type ClientConfig struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
	RPS         float64
	Burst       int
	HTTPClient  *http.Client
}

// Client sends text messages. Reply uses the one-shot token of the source
// event; Push addresses a user id and works at any later time.
type Client struct {
	api     *messaging_api.MessagingApiAPI
	limiter *rate.Limiter
}

// APIError is a non-2xx response from the Messaging API.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line api status %d: %s (request_id=%s)", e.StatusCode, e.Message, e.RequestID)
}

// NewClient fails only on an unusable base URL. A missing access token is
// reported by every send instead, so the relay can still start and answer
// webhooks.
func NewClient(config ClientConfig) (*Client, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RPS <= 0 {
		config.RPS = 10
	}
	if config.Burst <= 0 {
		config.Burst = 20
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	client := &Client{limiter: rate.NewLimiter(rate.Limit(config.RPS), config.Burst)}

	token := strings.TrimSpace(config.AccessToken)
	if token == "" {
		return client, nil
	}
	api, err := messaging_api.NewMessagingApiAPI(
		token,
		messaging_api.WithHTTPClient(config.HTTPClient),
		messaging_api.WithEndpoint(strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/")),
	)
	if err != nil {
		return nil, fmt.Errorf("create line messaging client: %w", err)
	}
	client.api = api
	return client, nil
}

func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if strings.TrimSpace(replyToken) == "" {
		return errors.New("reply token is required")
	}
	api, err := c.acquire(ctx)
	if err != nil {
		return err
	}

	response, _, err := api.ReplyMessageWithHttpInfo(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []messaging_api.MessageInterface{&messaging_api.TextMessage{Text: text}},
	})
	return classify(response, err)
}

// Push sets a fresh X-Line-Retry-Key so the platform can discard an
// accidental duplicate send.
func (c *Client) Push(ctx context.Context, to, text string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("recipient is required")
	}
	api, err := c.acquire(ctx)
	if err != nil {
		return err
	}

	response, _, err := api.PushMessageWithHttpInfo(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: []messaging_api.MessageInterface{&messaging_api.TextMessage{Text: text}},
	}, uuid.NewString())
	return classify(response, err)
}

// acquire waits for a delivery slot and binds ctx to the API handle.
func (c *Client) acquire(ctx context.Context) (*messaging_api.MessagingApiAPI, error) {
	if c.api == nil {
		return nil, ErrMissingToken
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for delivery slot: %w", err)
	}
	return c.api.WithContext(ctx), nil
}

func classify(response *http.Response, err error) error {
	if err == nil {
		return nil
	}
	if response == nil || (response.StatusCode >= 200 && response.StatusCode <= 299) {
		return fmt.Errorf("line transport error: %w", err)
	}

	message := err.Error()
	if response.Body != nil {
		body, readErr := io.ReadAll(io.LimitReader(response.Body, 64<<10))
		if readErr == nil {
			var decoded struct {
				Message string `json:"message"`
			}
			if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
				message = trimmed
			}
			if json.Unmarshal(body, &decoded) == nil && decoded.Message != "" {
				message = decoded.Message
			}
		}
	}
	if len(message) > 500 {
		message = message[:500]
	}
	return &APIError{
		StatusCode: response.StatusCode,
		Message:    message,
		RequestID:  response.Header.Get("X-Line-Request-Id"),
	}
}
