// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero assignments", func(c *Config) { c.Assignment.PerStudent = 0 }},
		{"bad balance mode", func(c *Config) { c.Assignment.Mode = "round-robin" }},
		{"non-positive rmax", func(c *Config) { c.Vancouver.RMax = 0 }},
		{"non-positive vg", func(c *Config) { c.Vancouver.VG = -1 }},
		{"alpha above one", func(c *Config) { c.Vancouver.Alpha = 1.5 }},
		{"zero iterations", func(c *Config) { c.Vancouver.Iterations = 0 }},
		{"zero precision", func(c *Config) { c.Vancouver.BasicPrecision = 0 }},
		{"short token", func(c *Config) { c.Token.Length = 8 }},
		{"zero expiry", func(c *Config) { c.Token.ExpiryDays = 0 }},
		{"zero max score", func(c *Config) { c.MaxScore = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mod(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
