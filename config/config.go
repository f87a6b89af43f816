// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package config holds the immutable runtime configuration.
// A Config value is built once at startup, validated, and passed by value
// into every component constructor. Nothing mutates it afterwards.
package config

import (
	"github.com/pkg/errors"
)

// BalanceMode selects how the assigner distributes papers to reviewers.
type BalanceMode string

const (
	// BalancePerfect guarantees uniform reviewer out-degree and paper in-degree.
	BalancePerfect BalanceMode = "perfect"
	// BalanceRandom draws targets uniformly; only out-degree is exact.
	BalanceRandom BalanceMode = "random"
	// BalanceWeighted is reserved; currently equivalent to BalancePerfect.
	BalanceWeighted BalanceMode = "weighted"
)

// Assignment configures the reviewer-to-paper assignment stage.
type Assignment struct {
	PerStudent int // papers each student reviews
	AllowSelf  bool
	Mode       BalanceMode
	// Seed shuffles the roster before the ring walk. Nil means no shuffle,
	// which keeps the output in roster order.
	Seed *int64
}

// Vancouver configures the consensus engine.
type Vancouver struct {
	RMax           float64 // reputation ceiling
	VG             float64 // variance tolerance; penalty slope is RMax/VG
	Alpha          float64 // weight of the incentive term in the final grade
	MinReviews     int     // reviews needed for full participation credit
	Iterations     int
	BasicPrecision float64
	UseAllData     bool // include a vertex's own message when aggregating
	MedianAggr     bool // weighted median instead of weighted mean
}

// Token configures credential minting.
type Token struct {
	Length     int // token string length, URL-safe chars
	ExpiryDays int
}

// Config is the full runtime configuration.
type Config struct {
	Assignment    Assignment
	Vancouver     Vancouver
	Token         Token
	MaxScore      int // per-question score ceiling
	MaxCommentLen int // per-question comment bound, bytes
}

// Default returns the configuration used when no flag overrides it.
// The Vancouver parameters match the course deployment values.
func Default() Config {
	return Config{
		Assignment: Assignment{
			PerStudent: 4,
			AllowSelf:  false,
			Mode:       BalancePerfect,
		},
		Vancouver: Vancouver{
			RMax:           1.0,
			VG:             8.0,
			Alpha:          0.1,
			MinReviews:     4,
			Iterations:     25,
			BasicPrecision: 1e-4,
			UseAllData:     true,
		},
		Token: Token{
			Length:     22,
			ExpiryDays: 7,
		},
		MaxScore:      20,
		MaxCommentLen: 2000,
	}
}

// Validate checks the configuration. Any error here is fatal at startup.
func (c Config) Validate() error {
	if c.Assignment.PerStudent < 1 {
		return errors.New("config: assignments per student must be >= 1")
	}
	switch c.Assignment.Mode {
	case BalancePerfect, BalanceRandom, BalanceWeighted:
	default:
		return errors.Errorf("config: unknown balance mode %q", c.Assignment.Mode)
	}
	if c.Vancouver.RMax <= 0 {
		return errors.New("config: R_max must be positive")
	}
	if c.Vancouver.VG <= 0 {
		return errors.New("config: v_G must be positive")
	}
	if c.Vancouver.Alpha < 0 || c.Vancouver.Alpha > 1 {
		return errors.New("config: alpha must be in [0, 1]")
	}
	if c.Vancouver.MinReviews < 1 {
		return errors.New("config: minimum review count must be >= 1")
	}
	if c.Vancouver.Iterations < 1 {
		return errors.New("config: iteration count must be >= 1")
	}
	if c.Vancouver.BasicPrecision <= 0 {
		return errors.New("config: basic precision must be positive")
	}
	if c.Token.Length < 16 {
		return errors.New("config: token length must be >= 16")
	}
	if c.Token.ExpiryDays < 1 {
		return errors.New("config: token expiry must be >= 1 day")
	}
	if c.MaxScore < 1 {
		return errors.New("config: max score must be >= 1")
	}
	if c.MaxCommentLen < 1 {
		return errors.New("config: max comment length must be >= 1")
	}
	return nil
}
