// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vancouver

import (
	"sort"
)

// weightedMedian interpolates the 50% point of the weighted value
// distribution. It is the robust alternative to the weighted mean, selected
// by the MedianAggr flag. Weights are assumed normalized.
func weightedMedian(values, weights []float64) float64 {
	if len(values) == 1 {
		return values[0]
	}

	type wv struct {
		v, w float64
	}
	vv := make([]wv, 0, len(values))
	for k := range values {
		if weights[k] > 0 {
			vv = append(vv, wv{values[k], weights[k]})
		}
	}
	if len(vv) == 0 {
		return values[0]
	}
	if len(vv) == 1 {
		return vv[0].v
	}
	sort.Slice(vv, func(a, b int) bool { return vv[a].v < vv[b].v })

	var total float64
	for _, x := range vv {
		total += x.w
	}
	half := total / 2.0

	below := 0.0
	i := 0
	for i < len(vv) && below+vv[i].w < half {
		below += vv[i].w
		i++
	}

	if half < below+0.5*vv[i].w {
		if i == 0 {
			return vv[0].v
		}
		alpha := half - below
		beta := below + 0.5*vv[i].w - half
		return (beta*(vv[i].v+vv[i-1].v)/2.0 + alpha*vv[i].v) / (alpha + beta)
	}
	if i == len(vv)-1 {
		return vv[i].v
	}
	alpha := half - below - 0.5*vv[i].w
	beta := below + vv[i].w - half
	return (beta*vv[i].v + alpha*(vv[i].v+vv[i+1].v)/2.0) / (alpha + beta)
}
