// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-5)",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for artifacts and the evaluation database",
	}
	dbPathFlag = cli.StringFlag{
		Name:  "db-path",
		Usage: "path to the evaluation database (defaults to <data-dir>/evaluation.db)",
	}
	examDataFlag = cli.StringFlag{
		Name:  "exam-data",
		Usage: "path to the processed exam data JSON",
	}
	assignmentsFlag = cli.StringFlag{
		Name:  "assignments",
		Usage: "path to an assignments artifact JSON",
	}
	evaluationsFlag = cli.StringFlag{
		Name:  "evaluations",
		Usage: "path to an aggregated evaluations JSON (bypasses the database)",
	}

	perStudentFlag = cli.IntFlag{
		Name:  "assignments-per-student",
		Value: 4,
		Usage: "papers each student reviews",
	}
	allowSelfFlag = cli.BoolFlag{
		Name:  "allow-self-evaluation",
		Usage: "let students review their own paper",
	}
	balanceModeFlag = cli.StringFlag{
		Name:  "balance-mode",
		Value: "perfect",
		Usage: "assignment balance mode (perfect|random|weighted)",
	}
	randomSeedFlag = cli.Int64Flag{
		Name:  "random-seed",
		Usage: "seed for the assignment shuffle (omit for roster order)",
	}
	maxScoreFlag = cli.IntFlag{
		Name:  "max-score",
		Value: 20,
		Usage: "per-question score ceiling",
	}

	rMaxFlag = cli.Float64Flag{
		Name:  "rmax",
		Value: 1.0,
		Usage: "reputation ceiling R_max",
	}
	vgFlag = cli.Float64Flag{
		Name:  "vg",
		Value: 8.0,
		Usage: "variance tolerance v_G",
	}
	alphaFlag = cli.Float64Flag{
		Name:  "alpha",
		Value: 0.1,
		Usage: "incentive weight alpha in [0,1]",
	}
	minReviewsFlag = cli.IntFlag{
		Name:  "min-reviews",
		Value: 4,
		Usage: "reviews needed for full participation credit",
	}
	iterationsFlag = cli.IntFlag{
		Name:  "iterations",
		Value: 25,
		Usage: "message-passing iteration count",
	}
	basicPrecisionFlag = cli.Float64Flag{
		Name:  "basic-precision",
		Value: 1e-4,
		Usage: "variance floor of the estimator weights",
	}
	medianAggrFlag = cli.BoolFlag{
		Name:  "aggregate-by-median",
		Usage: "aggregate with the weighted median instead of the weighted mean",
	}

	tokenLengthFlag = cli.IntFlag{
		Name:  "token-length",
		Value: 22,
		Usage: "token string length",
	}
	tokenExpiryFlag = cli.IntFlag{
		Name:  "token-expiry-days",
		Value: 7,
		Usage: "days until minted tokens expire",
	}

	addrFlag = cli.StringFlag{
		Name:  "addr",
		Value: "localhost:8080",
		Usage: "evaluation API listening address",
	}
	adminAddrFlag = cli.StringFlag{
		Name:  "admin-addr",
		Value: "localhost:2113",
		Usage: "admin API listening address",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "serve prometheus metrics on the admin listener",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enable API request logging",
	}

	reportFlag = cli.BoolFlag{
		Name:  "report",
		Usage: "print a plain-text verification summary",
	}
)
