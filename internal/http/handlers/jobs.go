package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iago/line-relay/internal/domain"
	"github.com/iago/line-relay/internal/repository"
)

type jobResponse struct {
	JobID        string              `json:"job_id"`
	UserID       string              `json:"user_id"`
	Status       domain.JobStatus    `json:"status"`
	ReplySource  domain.ReplySource  `json:"reply_source,omitempty"`
	DeliveryMode domain.DeliveryMode `json:"delivery_mode,omitempty"`
	ModelID      string              `json:"model_id,omitempty"`
	EnqueuedAt   time.Time           `json:"enqueued_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Error        *jobErrorResponse   `json:"error,omitempty"`
}

type jobErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newJobResponse(job domain.JobRecord) jobResponse {
	response := jobResponse{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		ReplySource:  job.ReplySource,
		DeliveryMode: job.DeliveryMode,
		ModelID:      job.ModelID,
		EnqueuedAt:   job.EnqueuedAt,
		UpdatedAt:    job.UpdatedAt,
	}
	if strings.TrimSpace(job.ErrorMessage) != "" {
		response.Error = &jobErrorResponse{Code: "delivery_error", Message: job.ErrorMessage}
	}
	return response
}

func (api *API) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.PathValue("id"))
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job_id is required")
		return
	}

	job, err := api.jobsService.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		api.logger.Error().Err(err).Str("job_id", jobID).Msg("load job failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load job")
		return
	}

	writeJSON(w, http.StatusOK, newJobResponse(*job))
}

func (api *API) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := parseOptionalInt(query.Get("page"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "page must be a positive integer")
		return
	}
	pageSize, err := parseOptionalInt(query.Get("page_size"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "page_size must be a positive integer")
		return
	}

	status := domain.JobStatus(strings.TrimSpace(query.Get("status")))
	switch status {
	case "", domain.JobStatusPending, domain.JobStatusProcessing, domain.JobStatusDone, domain.JobStatusFailed:
	default:
		writeError(w, r, http.StatusBadRequest, "invalid_request", "status must be pending, processing, done or failed")
		return
	}

	filter := domain.JobListFilter{
		UserID:   strings.TrimSpace(query.Get("user_id")),
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	}
	jobs, total, err := api.jobsService.ListJobs(r.Context(), filter)
	if err != nil {
		api.logger.Error().Err(err).Msg("list jobs failed")
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to list jobs")
		return
	}

	items := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, newJobResponse(job))
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"page":  filter.Page,
		"total": total,
	})
}

func parseOptionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return 0, errors.New("invalid integer")
	}
	return parsed, nil
}
