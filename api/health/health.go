// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package health exposes the liveness probe.
package health

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/peereval/peereval/api/restutil"
)

// Health answers liveness probes. It carries no dependencies on purpose:
// a live process answers even when the database does not.
type Health struct {
	version string
}

func New(version string) *Health {
	return &Health{version: version}
}

type response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

func (h *Health) handleGet(w http.ResponseWriter, _ *http.Request) error {
	return restutil.WriteJSON(w, &response{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// Mount registers the endpoint on the router.
func (h *Health) Mount(router *mux.Router) {
	router.Path("/health").
		Methods(http.MethodGet).
		Name("get-health").
		HandlerFunc(restutil.WrapHandlerFunc(h.handleGet))
}
