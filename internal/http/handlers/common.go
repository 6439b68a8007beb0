package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iago/line-relay/internal/http/middleware"
	"github.com/iago/line-relay/internal/service"
	"github.com/iago/line-relay/internal/worker"
)

// WorkerStatus is the read-only view of the dispatcher served by health
// endpoints.
type WorkerStatus interface {
	State() worker.State
	Depth() int
}

type CompletionStatus interface {
	AIEnabled() bool
	Model() string
}

type API struct {
	jobsService *service.JobsService
	worker      WorkerStatus
	completion  CompletionStatus
	logger      zerolog.Logger
}

func NewAPI(
	jobsService *service.JobsService,
	worker WorkerStatus,
	completion CompletionStatus,
	logger zerolog.Logger,
) *API {
	return &API{
		jobsService: jobsService,
		worker:      worker,
		completion:  completion,
		logger:      logger.With().Str("component", "api").Logger(),
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}
