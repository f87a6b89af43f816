// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api assembles the HTTP surface of the evaluation server.
package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/peereval/peereval/api/evaluate"
	"github.com/peereval/peereval/api/health"
	"github.com/peereval/peereval/config"
	"github.com/peereval/peereval/eval"
	"github.com/peereval/peereval/evaldb"
)

// New returns the assembled api handler. Metrics are served by the admin
// listener, not here.
func New(
	svc *eval.Service,
	store *evaldb.Store,
	cfg config.Config,
	version string,
	logRequests bool,
) http.HandlerFunc {
	router := mux.NewRouter()
	evaluate.New(svc, store, cfg, version).Mount(router)
	health.New(version).Mount(router)

	handler := handlers.CompressHandler(router)
	handler = metricsHandler(handler)
	if logRequests {
		handler = RequestLoggerHandler(handler, log.New("pkg", "api"))
	}

	return func(w http.ResponseWriter, req *http.Request) {
		handler.ServeHTTP(w, req)
	}
}
