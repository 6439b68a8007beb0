package handlers

import (
	"io"
	"net/http"

	"github.com/sourcegraph/conc/panics"

	"github.com/iago/line-relay/internal/http/middleware"
	"github.com/iago/line-relay/internal/line"
)

const maxWebhookBody = 1 << 20

// Webhook always acknowledges with 200 and an empty body. Failures are
// logged, never reported to the caller.
func (api *API) Webhook(w http.ResponseWriter, r *http.Request) {
	var catcher panics.Catcher
	catcher.Try(func() {
		api.ingest(r)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		api.logger.Error().
			Err(recovered.AsError()).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("webhook handler panicked")
	}
	w.WriteHeader(http.StatusOK)
}

func (api *API) ingest(r *http.Request) {
	logger := api.logger.With().Str("request_id", middleware.GetRequestID(r.Context())).Logger()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		logger.Warn().Err(err).Msg("read webhook body failed")
		return
	}

	payload, err := line.ParseWebhook(body)
	if err != nil {
		logger.Warn().Err(err).Int("bytes", len(body)).Msg("malformed webhook payload")
		return
	}
	if payload.Skipped > 0 {
		logger.Warn().Int("skipped", payload.Skipped).Msg("undecodable webhook events skipped")
	}
	if len(payload.Events) == 0 {
		return
	}

	result := api.jobsService.Ingest(r.Context(), payload.Events)
	logger.Info().
		Int("events", len(payload.Events)).
		Int("accepted", result.Accepted).
		Int("ignored", result.Ignored).
		Int("duplicates", result.Duplicates).
		Int("failed", result.Failed).
		Msg("webhook processed")
}
