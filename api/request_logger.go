// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
)

// RequestLoggerHandler logs every request before dispatching it. Bodies are
// re-buffered so downstream handlers can still read them. Submission bodies
// contain free-text comments, so this stays off unless explicitly enabled.
func RequestLoggerHandler(handler http.Handler, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			var err error
			if body, err = io.ReadAll(r.Body); err != nil {
				logger.Warn("request body read failed", "err", err)
				http.Error(w, "bad request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		logger.Info("request",
			"method", r.Method,
			"uri", r.URL.String(),
			"bytes", len(body),
		)
		handler.ServeHTTP(w, r)
	})
}
