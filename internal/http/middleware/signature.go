package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/rs/zerolog"

	"github.com/iago/line-relay/internal/line"
)

const maxSignedBody = 1 << 20

type SignatureConfig struct {
	ChannelSecret string
	// Strict answers 401 on a bad signature. Otherwise the request is
	// acknowledged with 200 and dropped.
	Strict bool
	Logger zerolog.Logger
}

// LineSignature verifies X-Line-Signature over the raw body and hands the
// body on unchanged. An empty secret disables verification.
func LineSignature(config SignatureConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if config.ChannelSecret == "" {
			config.Logger.Warn().Msg("LINE_CHANNEL_SECRET not configured, webhook signatures are not verified")
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
			if err != nil {
				config.Logger.Warn().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("read signed body failed")
				rejectSignature(w, r, config.Strict)
				return
			}

			if !webhook.ValidateSignature(config.ChannelSecret, r.Header.Get(line.SignatureHeader), body) {
				config.Logger.Warn().
					Str("request_id", GetRequestID(r.Context())).
					Bool("strict", config.Strict).
					Msg("invalid webhook signature")
				rejectSignature(w, r, config.Strict)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func rejectSignature(w http.ResponseWriter, r *http.Request, strict bool) {
	if !strict {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSONError(w, r, http.StatusUnauthorized, "invalid_signature", "signature verification failed")
}
