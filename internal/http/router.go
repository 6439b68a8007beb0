package httpserver

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iago/line-relay/internal/http/handlers"
	"github.com/iago/line-relay/internal/http/middleware"
)

type RouterDependencies struct {
	API             *handlers.API
	Logger          zerolog.Logger
	AuthToken       string
	ChannelSecret   string
	SignatureStrict bool
}

func NewRouter(deps RouterDependencies) http.Handler {
	signature := middleware.LineSignature(middleware.SignatureConfig{
		ChannelSecret: deps.ChannelSecret,
		Strict:        deps.SignatureStrict,
		Logger:        deps.Logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", deps.API.Root)
	mux.HandleFunc("GET /healthz", deps.API.Health)
	mux.Handle("POST /webhook", signature(http.HandlerFunc(deps.API.Webhook)))
	mux.HandleFunc("GET /v1/jobs/{id}", deps.API.JobStatus)
	mux.HandleFunc("GET /v1/jobs", deps.API.ListJobs)

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken)(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
