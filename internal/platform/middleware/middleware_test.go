// Copyright (c) 2026 AetherCore contributors.

package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taibuivan/aethercore/internal/platform/constants"
	"github.com/taibuivan/aethercore/internal/platform/ctxutil"
)

func TestRequestID_GeneratesWhenAbsentAndEchoesWhenPresent(t *testing.T) {
	var gotID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = ctxutil.GetRequestID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	RequestID()(next).ServeHTTP(rec, req)

	if gotID == "" {
		t.Error("RequestID should generate an ID when the client sends none")
	}
	if rec.Header().Get(constants.HeaderXRequestID) != gotID {
		t.Error("generated request ID should be echoed in the response header")
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(constants.HeaderXRequestID, "client-supplied-id")
	rec = httptest.NewRecorder()
	RequestID()(next).ServeHTTP(rec, req)

	if gotID != "client-supplied-id" {
		t.Errorf("gotID = %q, want client-supplied-id", gotID)
	}
}

func TestStructuredLogger_InjectsLoggerAndPassesThrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var loggerWasPresent bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loggerWasPresent = ctxutil.GetLogger(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	StructuredLogger(logger)(next).ServeHTTP(rec, req)

	if !loggerWasPresent {
		t.Error("StructuredLogger should inject a per-request logger into context")
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want passthrough of 418", rec.Code)
	}
}

func TestPanicRecovery_ConvertsPanicToInternalError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = req.WithContext(ctxutil.WithLogger(req.Context(), logger))
	rec := httptest.NewRecorder()

	PanicRecovery(logger)(panicky).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestPanicRecovery_PassesThroughWhenNoPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	PanicRecovery(logger)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

type fakeAppConfig struct{ dev bool }

func (c fakeAppConfig) IsDevelopment() bool { return c.dev }

func TestCORS_DevAllowsAnyOrigin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(constants.HeaderOrigin, "https://anywhere.example.com")
	rec := httptest.NewRecorder()
	CORS(fakeAppConfig{dev: true})(next).ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "https://anywhere.example.com" {
		t.Error("dev mode should echo back any origin")
	}
}

func TestCORS_ProdRejectsUnknownOrigin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(constants.HeaderOrigin, "https://evil.example.com")
	rec := httptest.NewRecorder()
	CORS(fakeAppConfig{dev: false})(next).ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("prod mode should not set CORS headers for a foreign origin")
	}
}

func TestCORS_ProdAllowsOwnDomain(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(constants.HeaderOrigin, "https://admin.aethercore.local")
	rec := httptest.NewRecorder()
	CORS(fakeAppConfig{dev: false})(next).ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "https://admin.aethercore.local" {
		t.Error("prod mode should allow origins on the platform's own domain")
	}
}

func TestCORS_PreflightReturnsNoContent(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set(constants.HeaderOrigin, "https://admin.aethercore.local")
	rec := httptest.NewRecorder()
	CORS(fakeAppConfig{dev: false})(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}

func TestCORS_NoOriginHeaderPassesThroughUnmodified(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	CORS(fakeAppConfig{})(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("no Origin header should mean no CORS headers are set")
	}
}

func TestRealIP_PrefersXRealIPThenForwardedThenRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(constants.HeaderXRealIP, "10.0.0.1")
	req.Header.Set(constants.HeaderXForwardedFor, "10.0.0.2, 10.0.0.3")
	if got := RealIP(req); got != "10.0.0.1" {
		t.Errorf("RealIP = %q, want 10.0.0.1", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(constants.HeaderXForwardedFor, "10.0.0.2, 10.0.0.3")
	if got := RealIP(req); got != "10.0.0.2" {
		t.Errorf("RealIP = %q, want 10.0.0.2", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "192.168.1.5:54321"
	if got := RealIP(req); got != "192.168.1.5" {
		t.Errorf("RealIP = %q, want 192.168.1.5", got)
	}
}

func TestRateLimit_BlocksAfterBurstExhausted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RateLimit(ctx)(next)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "203.0.113.7:1111"

	var lastCode int
	for i := 0; i < constants.DefaultRateLimitBurst+5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Errorf("after exhausting the burst, status = %d, want 429", lastCode)
	}
}
