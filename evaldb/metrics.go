// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package evaldb

import (
	"github.com/peereval/peereval/metrics"
)

var (
	metricTokensSaved         = metrics.LazyLoadCounter("evaldb_tokens_saved_count")
	metricSubmissionsAccepted = metrics.LazyLoadCounter("evaldb_submissions_accepted_count")
	metricLogWriteFailures    = metrics.LazyLoadCounter("evaldb_log_write_failure_count")
)
