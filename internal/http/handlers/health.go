package handlers

import (
	"fmt"
	"net/http"
)

const (
	modeAI       = "ai"
	modeFallback = "fallback"
)

func (api *API) mode() string {
	if api.completion != nil && api.completion.AIEnabled() {
		return modeAI
	}
	return modeFallback
}

func (api *API) model() string {
	if api.completion == nil {
		return ""
	}
	return api.completion.Model()
}

// Root answers browsers and uptime probes with a one-line status.
func (api *API) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if api.mode() == modeAI {
		_, _ = fmt.Fprintf(w, "LINE relay is running. Mode: AI replies (%s).\n", api.model())
		return
	}
	_, _ = fmt.Fprintln(w, "LINE relay is running. Mode: fallback replies only (no completion API key).")
}

func (api *API) Health(w http.ResponseWriter, _ *http.Request) {
	response := map[string]any{
		"status": "ok",
		"mode":   api.mode(),
		"model":  api.model(),
	}
	if api.worker != nil {
		response["queue_depth"] = api.worker.Depth()
		response["worker_state"] = api.worker.State().String()
	}
	writeJSON(w, http.StatusOK, response)
}
