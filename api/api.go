// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api exposes the validator's local HTTP surface: health, prometheus
// metrics and a runtime log level switch. It binds to a local interface and
// carries no authentication.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/hone-subnet/hone/api/restutil"
	"github.com/hone-subnet/hone/health"
	"github.com/hone-subnet/hone/log"
	"github.com/hone-subnet/hone/metrics"
)

// New assembles the handler for the validator's operational endpoints.
func New(h *health.Health, logLevel *slog.LevelVar) http.HandlerFunc {
	router := mux.NewRouter()

	router.Path("/health").
		Methods(http.MethodGet).
		Name("health").
		HandlerFunc(restutil.WrapHandlerFunc(healthHandler(h)))

	if mh := metrics.HTTPHandler(); mh != nil {
		router.Path("/metrics").Methods(http.MethodGet).Name("metrics").Handler(mh)
	}

	router.Path("/admin/loglevel").
		Methods(http.MethodGet).
		Name("get-log-level").
		HandlerFunc(restutil.WrapHandlerFunc(getLogLevelHandler(logLevel)))

	router.Path("/admin/loglevel").
		Methods(http.MethodPost).
		Name("post-log-level").
		HandlerFunc(restutil.WrapHandlerFunc(postLogLevelHandler(logLevel)))

	return handlers.CompressHandler(router).ServeHTTP
}

func healthHandler(h *health.Health) restutil.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) error {
		status := h.Status()
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		return restutil.WriteJSON(w, status)
	}
}

type logLevelRequest struct {
	Level string `json:"level"`
}

type logLevelResponse struct {
	CurrentLevel string `json:"currentLevel"`
}

func getLogLevelHandler(logLevel *slog.LevelVar) restutil.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) error {
		return restutil.WriteJSON(w, logLevelResponse{
			CurrentLevel: logLevel.Level().String(),
		})
	}
}

func postLogLevelHandler(logLevel *slog.LevelVar) restutil.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req logLevelRequest
		if err := restutil.ParseJSON(r.Body, &req); err != nil {
			return restutil.BadRequest(errors.WithMessage(err, "Invalid request body"))
		}

		switch req.Level {
		case "trace":
			logLevel.Set(log.LevelTrace)
		case "debug":
			logLevel.Set(log.LevelDebug)
		case "info":
			logLevel.Set(log.LevelInfo)
		case "warn":
			logLevel.Set(log.LevelWarn)
		case "error":
			logLevel.Set(log.LevelError)
		case "crit":
			logLevel.Set(log.LevelCrit)
		default:
			return restutil.BadRequest(errors.New("Invalid verbosity level"))
		}

		return restutil.WriteJSON(w, logLevelResponse{
			CurrentLevel: logLevel.Level().String(),
		})
	}
}
