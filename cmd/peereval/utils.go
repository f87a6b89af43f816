// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/peereval/peereval/config"
	"github.com/peereval/peereval/evaldb"
)

func initLogger(ctx *cli.Context) {
	verbosity := ctx.Int(verbosityFlag.Name)
	useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), useColor)
	log.SetDefault(log.NewLogger(handler))
}

// The config binders below each cover one flag group; an action applies only
// the groups whose flags it registers, on top of the defaults. Every action
// validates the result once; validation failures are fatal.

func bindAssignmentFlags(ctx *cli.Context, cfg *config.Config) {
	cfg.Assignment.PerStudent = ctx.Int(perStudentFlag.Name)
	cfg.Assignment.AllowSelf = ctx.Bool(allowSelfFlag.Name)
	cfg.Assignment.Mode = config.BalanceMode(ctx.String(balanceModeFlag.Name))
	if ctx.IsSet(randomSeedFlag.Name) {
		seed := ctx.Int64(randomSeedFlag.Name)
		cfg.Assignment.Seed = &seed
	}
}

func bindVancouverFlags(ctx *cli.Context, cfg *config.Config) {
	cfg.Vancouver.RMax = ctx.Float64(rMaxFlag.Name)
	cfg.Vancouver.VG = ctx.Float64(vgFlag.Name)
	cfg.Vancouver.Alpha = ctx.Float64(alphaFlag.Name)
	cfg.Vancouver.MinReviews = ctx.Int(minReviewsFlag.Name)
	cfg.Vancouver.Iterations = ctx.Int(iterationsFlag.Name)
	cfg.Vancouver.BasicPrecision = ctx.Float64(basicPrecisionFlag.Name)
	cfg.Vancouver.MedianAggr = ctx.Bool(medianAggrFlag.Name)
}

func bindTokenFlags(ctx *cli.Context, cfg *config.Config) {
	cfg.Token.Length = ctx.Int(tokenLengthFlag.Name)
	cfg.Token.ExpiryDays = ctx.Int(tokenExpiryFlag.Name)
}

func bindServeFlags(ctx *cli.Context, cfg *config.Config) {
	cfg.MaxScore = ctx.Int(maxScoreFlag.Name)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".peereval"
	}
	return filepath.Join(home, ".peereval")
}

func dbPath(ctx *cli.Context) string {
	if path := ctx.String(dbPathFlag.Name); path != "" {
		return path
	}
	return filepath.Join(ctx.String(dataDirFlag.Name), "evaluation.db")
}

func openDB(ctx *cli.Context) (*evaldb.Store, error) {
	path := dbPath(ctx)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}
	store, err := evaldb.New(path)
	if err != nil {
		return nil, errors.Wrap(err, "open evaluation database")
	}
	return store, nil
}

// makeRunDir creates a fresh timestamped directory for this run's artifacts.
func makeRunDir(ctx *cli.Context) (string, error) {
	dir := filepath.Join(ctx.String(dataDirFlag.Name),
		"run_"+time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrap(err, "create run directory")
	}
	return dir, nil
}

func writeArtifact(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode artifact")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "write artifact")
	}
	return nil
}

func readArtifact(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read artifact")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "parse artifact %v", path)
	}
	return nil
}

// handleExitSignal returns a context canceled on SIGINT/SIGTERM.
func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		log.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}
