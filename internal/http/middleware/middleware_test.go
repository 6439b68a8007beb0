package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iago/line-relay/internal/line"
)

func echoBody() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write(body)
	})
}

func TestLineSignatureAcceptsValidSignature(t *testing.T) {
	body := `{"events":[]}`
	handler := LineSignature(SignatureConfig{ChannelSecret: "secret", Logger: zerolog.Nop()})(echoBody())

	request := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	request.Header.Set(line.SignatureHeader, line.Sign("secret", []byte(body)))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected next handler to run, got status %d", recorder.Code)
	}
	if recorder.Body.String() != body {
		t.Fatalf("expected body to be passed through, got %q", recorder.Body.String())
	}
}

func TestLineSignatureRejectsInvalidSignature(t *testing.T) {
	tests := []struct {
		name       string
		strict     bool
		wantStatus int
	}{
		{name: "lenient acks", strict: false, wantStatus: http.StatusOK},
		{name: "strict rejects", strict: true, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			handler := LineSignature(SignatureConfig{
				ChannelSecret: "secret",
				Strict:        tt.strict,
				Logger:        zerolog.Nop(),
			})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				nextCalled = true
			}))

			request := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"events":[]}`))
			request.Header.Set(line.SignatureHeader, line.Sign("wrong", []byte(`{"events":[]}`)))
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			if nextCalled {
				t.Fatalf("expected handler chain to stop")
			}
			if recorder.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, recorder.Code)
			}
		})
	}
}

func TestLineSignatureDisabledWithoutSecret(t *testing.T) {
	handler := LineSignature(SignatureConfig{Logger: zerolog.Nop()})(echoBody())

	request := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected passthrough, got status %d", recorder.Code)
	}
}

func TestAuthProtectsOnlyAPIRoutes(t *testing.T) {
	handler := RequestID(Auth("token")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	cases := []struct {
		path       string
		header     string
		wantStatus int
	}{
		{path: "/healthz", wantStatus: http.StatusNoContent},
		{path: "/v1/jobs", wantStatus: http.StatusUnauthorized},
		{path: "/v1/jobs", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{path: "/v1/jobs", header: "Bearer token", wantStatus: http.StatusNoContent},
	}
	for _, tc := range cases {
		request := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			request.Header.Set("Authorization", tc.header)
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)

		if recorder.Code != tc.wantStatus {
			t.Fatalf("%s %q: expected %d, got %d", tc.path, tc.header, tc.wantStatus, recorder.Code)
		}
	}
}

func TestRequestIDPropagatesHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Request-Id", "req-42")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if seen != "req-42" || recorder.Header().Get("X-Request-Id") != "req-42" {
		t.Fatalf("expected request id to propagate, got %q", seen)
	}
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Request-Id", `bad"id`)
	handler.ServeHTTP(httptest.NewRecorder(), request)

	if seen == `bad"id` || len(seen) != 36 {
		t.Fatalf("expected a generated uuid, got %q", seen)
	}
}
