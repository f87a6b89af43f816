// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package token

import (
	"crypto/rand"
	"encoding/base64"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/peereval/peereval/assign"
	"github.com/peereval/peereval/config"
)

// ErrCollision is returned when the minted batch contains duplicate token
// strings. With >=128 bits of entropy this indicates a broken random source.
var ErrCollision = errors.New("token: collision in minted batch")

// Store persists minted tokens. The batch is all-or-nothing.
type Store interface {
	SaveTokensBatch(tokens []*Token) error
}

// Minter materializes one token per assignment pair.
type Minter struct {
	cfg   config.Token
	store Store
}

// NewMinter creates a minter. store may be nil to mint without persisting.
func NewMinter(cfg config.Token, store Store) *Minter {
	return &Minter{cfg: cfg, store: store}
}

// Mint emits exactly one pending token for every (evaluator, target) pair in
// the assignment relation, all sharing the same question list and expiry.
// Evaluators are enumerated in sorted order so the batch layout is stable.
func (m *Minter) Mint(assignments map[string]*assign.Entry, questions []string, now time.Time) (map[string][]*Token, error) {
	evaluators := make([]string, 0, len(assignments))
	for id := range assignments {
		evaluators = append(evaluators, id)
	}
	sort.Strings(evaluators)

	expiresAt := now.Add(time.Duration(m.cfg.ExpiryDays) * 24 * time.Hour)
	seen := make(map[string]struct{})
	byEvaluator := make(map[string][]*Token, len(evaluators))
	var batch []*Token

	for _, evaluator := range evaluators {
		for _, target := range assignments[evaluator].AssignedPapers {
			id, err := randomString(m.cfg.Length)
			if err != nil {
				return nil, err
			}
			if _, ok := seen[id]; ok {
				return nil, ErrCollision
			}
			seen[id] = struct{}{}

			tok := &Token{
				ID:          id,
				EvaluatorID: evaluator,
				TargetID:    target,
				Questions:   append([]string(nil), questions...),
				CreatedAt:   now,
				ExpiresAt:   expiresAt,
				Status:      StatusPending,
			}
			byEvaluator[evaluator] = append(byEvaluator[evaluator], tok)
			batch = append(batch, tok)
		}
	}

	if m.store != nil {
		if err := m.store.SaveTokensBatch(batch); err != nil {
			return nil, errors.WithMessage(err, "persist minted tokens")
		}
	}
	return byEvaluator, nil
}

// randomString draws length URL-safe characters from crypto/rand.
func randomString(length int) (string, error) {
	buf := make([]byte, (length*6+7)/8)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "token: random source")
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:length], nil
}
