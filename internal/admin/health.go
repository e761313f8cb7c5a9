// Copyright (c) 2026 AetherCore contributors.

package admin

import (
	"log/slog"
	"net/http"

	"github.com/taibuivan/aethercore/internal/platform/constants"
	"github.com/taibuivan/aethercore/internal/platform/respond"
)

// newHealthHandlers returns the liveness and readiness [http.HandlerFunc]
// pair. checkStore may be nil, in which case readiness always reports ready.
func newHealthHandlers(checkStore func() error, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	liveness = func(w http.ResponseWriter, _ *http.Request) {
		respond.OK(w, map[string]string{
			constants.FieldStatus:  "ok",
			constants.FieldApp:     constants.AppName,
			constants.FieldVersion: constants.AppVersion,
		})
	}

	readiness = func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		httpStatus := http.StatusOK

		if checkStore != nil {
			if err := checkStore(); err != nil {
				status = "degraded"
				httpStatus = http.StatusServiceUnavailable
				logger.ErrorContext(r.Context(), "readiness_check_failed", slog.Any("error", err))
			}
		}

		if httpStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(httpStatus)
		}
		respond.OK(w, map[string]string{constants.FieldStatus: status})
	}

	return liveness, readiness
}
