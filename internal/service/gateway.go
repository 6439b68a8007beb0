package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	"github.com/iago/line-relay/internal/ai"
	"github.com/iago/line-relay/internal/conversation"
	"github.com/iago/line-relay/internal/domain"
	"github.com/iago/line-relay/internal/fallback"
	"github.com/iago/line-relay/internal/policy"
	"github.com/iago/line-relay/internal/quality"
)

const (
	DefaultCompletionTimeout = 3500 * time.Millisecond
	DefaultTemperature       = 0.8
	DefaultMaxTokens         = 150
)

var ErrCompletionTimeout = errors.New("completion timed out")

type CompletionGatewayDependencies struct {
	Client      ai.ChatCompleter
	Store       *conversation.Store
	Fallback    *fallback.Responder
	Persona     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// Reply is the gateway outcome. Err holds the completion failure that caused
// a fallback reply, if any.
type Reply struct {
	Text    string
	Source  domain.ReplySource
	ModelID string
	Err     error
}

// CompletionGateway turns one user message into a reply. It never fails:
// every completion problem degrades to the fallback responder and leaves the
// stored conversation untouched.
type CompletionGateway struct {
	client      ai.ChatCompleter
	store       *conversation.Store
	fallback    *fallback.Responder
	persona     string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      zerolog.Logger
}

type completionOutcome struct {
	result ai.ChatResult
	err    error
}

func NewCompletionGateway(deps CompletionGatewayDependencies) *CompletionGateway {
	if deps.Store == nil {
		deps.Store = conversation.NewStore(conversation.DefaultMaxTurns)
	}
	if deps.Fallback == nil {
		deps.Fallback = fallback.NewResponder()
	}
	if deps.Persona == "" {
		deps.Persona, _ = LoadPersona("", PersonaData{})
	}
	if deps.Temperature <= 0 {
		deps.Temperature = DefaultTemperature
	}
	if deps.MaxTokens <= 0 {
		deps.MaxTokens = DefaultMaxTokens
	}
	if deps.Timeout <= 0 {
		deps.Timeout = DefaultCompletionTimeout
	}

	return &CompletionGateway{
		client:      deps.Client,
		store:       deps.Store,
		fallback:    deps.Fallback,
		persona:     deps.Persona,
		model:       deps.Model,
		temperature: deps.Temperature,
		maxTokens:   deps.MaxTokens,
		timeout:     deps.Timeout,
		logger:      deps.Logger.With().Str("component", "gateway").Logger(),
	}
}

// AIEnabled reports whether a completion credential is configured.
func (g *CompletionGateway) AIEnabled() bool {
	return g.client != nil && g.client.Available()
}

func (g *CompletionGateway) Model() string {
	return g.model
}

func (g *CompletionGateway) Reply(ctx context.Context, userID, text string) Reply {
	if !g.AIEnabled() {
		return g.fallbackReply(text, nil)
	}

	history := g.store.GetOrCreate(userID)
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.SystemMessage(g.persona))
	for _, turn := range history {
		messages = append(messages, ai.TurnMessage(turn))
	}
	messages = append(messages, ai.TurnMessage(domain.UserTurn(text)))

	started := time.Now()
	result, err := g.complete(ctx, ai.ChatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err == nil {
		var cleaned string
		cleaned, err = quality.CleanReply(result.Text, quality.MaxLineTextRunes)
		if err == nil {
			g.store.AppendExchange(userID, domain.UserTurn(text), domain.AssistantTurn(cleaned))
			g.logger.Debug().
				Str("user", policy.MaskUserID(userID)).
				Str("model", result.ModelID).
				Int("history_turns", len(history)).
				Int("total_tokens", result.Usage.TotalTokens).
				Dur("latency", time.Since(started)).
				Msg("completion succeeded")
			return Reply{
				Text:    cleaned,
				Source:  domain.ReplySourceAI,
				ModelID: firstNonEmpty(result.ModelID, g.model),
			}
		}
	}

	g.logger.Warn().
		Err(err).
		Str("user", policy.MaskUserID(userID)).
		Int("status", ai.StatusCode(err)).
		Dur("latency", time.Since(started)).
		Msg("completion failed, using fallback reply")
	return g.fallbackReply(text, err)
}

// complete races the request against the gateway timeout. The request
// context is cancelled as soon as the race is decided, so a late response
// is never read.
func (g *CompletionGateway) complete(ctx context.Context, request ai.ChatRequest) (ai.ChatResult, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan completionOutcome, 1)
	go func() {
		var outcome completionOutcome
		var catcher panics.Catcher
		catcher.Try(func() {
			outcome.result, outcome.err = g.client.Complete(callCtx, request)
		})
		if recovered := catcher.Recovered(); recovered != nil {
			outcome = completionOutcome{err: fmt.Errorf("completion panicked: %w", recovered.AsError())}
		}
		outcomes <- outcome
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case outcome := <-outcomes:
		return outcome.result, outcome.err
	case <-timer.C:
		return ai.ChatResult{}, fmt.Errorf("%w after %s", ErrCompletionTimeout, g.timeout)
	case <-ctx.Done():
		return ai.ChatResult{}, ctx.Err()
	}
}

func (g *CompletionGateway) fallbackReply(text string, cause error) Reply {
	return Reply{
		Text:   g.fallback.Reply(text),
		Source: domain.ReplySourceFallback,
		Err:    cause,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
