// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/peereval/peereval/api"
	"github.com/peereval/peereval/api/health"
	"github.com/peereval/peereval/assign"
	"github.com/peereval/peereval/config"
	"github.com/peereval/peereval/eval"
	"github.com/peereval/peereval/evaldb"
	"github.com/peereval/peereval/metrics"
	"github.com/peereval/peereval/roster"
	"github.com/peereval/peereval/token"
	"github.com/peereval/peereval/vancouver"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "peereval",
		Usage:     "peer evaluation pipeline",
		Copyright: "2025 peereval developers",
		Commands: []cli.Command{
			{
				Name:  "assign",
				Usage: "build the reviewer-to-paper assignment artifact",
				Flags: []cli.Flag{
					verbosityFlag,
					dataDirFlag,
					examDataFlag,
					perStudentFlag,
					allowSelfFlag,
					balanceModeFlag,
					randomSeedFlag,
				},
				Action: assignAction,
			},
			{
				Name:  "mint",
				Usage: "mint evaluation tokens for an assignment artifact",
				Flags: []cli.Flag{
					verbosityFlag,
					dataDirFlag,
					dbPathFlag,
					assignmentsFlag,
					examDataFlag,
					tokenLengthFlag,
					tokenExpiryFlag,
				},
				Action: mintAction,
			},
			{
				Name:  "serve",
				Usage: "run the evaluation HTTP server",
				Flags: []cli.Flag{
					verbosityFlag,
					dataDirFlag,
					dbPathFlag,
					examDataFlag,
					maxScoreFlag,
					addrFlag,
					adminAddrFlag,
					enableMetricsFlag,
					enableAPILogsFlag,
				},
				Action: serveAction,
			},
			{
				Name:  "grade",
				Usage: "run the consensus engine and write final grades",
				Flags: []cli.Flag{
					verbosityFlag,
					dataDirFlag,
					dbPathFlag,
					evaluationsFlag,
					rMaxFlag,
					vgFlag,
					alphaFlag,
					minReviewsFlag,
					iterationsFlag,
					basicPrecisionFlag,
					medianAggrFlag,
					reportFlag,
				},
				Action: gradeAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func assignAction(ctx *cli.Context) error {
	initLogger(ctx)
	cfg := config.Default()
	bindAssignmentFlags(ctx, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	examPath := ctx.String(examDataFlag.Name)
	if examPath == "" {
		return fmt.Errorf("--%v is required", examDataFlag.Name)
	}
	exam, err := roster.Load(examPath)
	if err != nil {
		return err
	}

	entries, err := assign.New(cfg.Assignment).Run(exam.StudentIDs())
	if err != nil {
		return err
	}
	artifact := &assign.Assignments{
		Assignments: entries,
		Questions:   exam.Questions,
		Metadata: assign.Metadata{
			GeneratedAt: time.Now().UTC(),
			Mode:        cfg.Assignment.Mode,
			PerStudent:  cfg.Assignment.PerStudent,
			AllowSelf:   cfg.Assignment.AllowSelf,
			Seed:        cfg.Assignment.Seed,
		},
	}

	runDir, err := makeRunDir(ctx)
	if err != nil {
		return err
	}
	out := filepath.Join(runDir, "assignments.json")
	if err := writeArtifact(out, artifact); err != nil {
		return err
	}
	log.Info("assignments written", "students", len(entries), "path", out)
	return nil
}

// tokensArtifact is the minted-batch document handed to the mail adapter.
type tokensArtifact struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	ExpiryDays  int                       `json:"expiry_days"`
	Tokens      map[string][]*token.Token `json:"tokens_by_evaluator"`
}

func mintAction(ctx *cli.Context) error {
	initLogger(ctx)
	cfg := config.Default()
	bindTokenFlags(ctx, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	assignmentsPath := ctx.String(assignmentsFlag.Name)
	if assignmentsPath == "" {
		return fmt.Errorf("--%v is required", assignmentsFlag.Name)
	}
	var artifact assign.Assignments
	if err := readArtifact(assignmentsPath, &artifact); err != nil {
		return err
	}

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { log.Info("closing database..."); store.Close() }()

	// the roster is persisted alongside so the server can resolve names
	if examPath := ctx.String(examDataFlag.Name); examPath != "" {
		exam, err := roster.Load(examPath)
		if err != nil {
			return err
		}
		now := time.Now()
		students := make([]*evaldb.Student, 0, len(exam.Students))
		for _, id := range exam.StudentIDs() {
			st := exam.Students[id]
			students = append(students, &evaldb.Student{
				ID:        id,
				Name:      st.Name,
				Email:     st.Email,
				CreatedAt: now,
			})
		}
		if err := store.SaveStudentsBatch(students); err != nil {
			return err
		}
	}

	questions := make([]string, 0, len(artifact.Questions))
	for qid := range artifact.Questions {
		questions = append(questions, qid)
	}
	sort.Strings(questions)

	now := time.Now()
	byEvaluator, err := token.NewMinter(cfg.Token, store).Mint(artifact.Assignments, questions, now)
	if err != nil {
		return err
	}

	runDir, err := makeRunDir(ctx)
	if err != nil {
		return err
	}
	out := filepath.Join(runDir, "tokens.json")
	if err := writeArtifact(out, &tokensArtifact{
		GeneratedAt: now.UTC(),
		ExpiryDays:  cfg.Token.ExpiryDays,
		Tokens:      byEvaluator,
	}); err != nil {
		return err
	}

	total := 0
	for _, toks := range byEvaluator {
		total += len(toks)
	}
	log.Info("tokens minted", "evaluators", len(byEvaluator), "tokens", total, "path", out)
	return nil
}

func serveAction(ctx *cli.Context) error {
	defer func() { log.Info("exited") }()

	initLogger(ctx)
	cfg := config.Default()
	bindServeFlags(ctx, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { log.Info("closing database..."); store.Close() }()

	var exam *roster.ExamData
	if examPath := ctx.String(examDataFlag.Name); examPath != "" {
		if exam, err = roster.Load(examPath); err != nil {
			return err
		}
	} else {
		log.Warn("running without exam data, forms show question ids only")
	}

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	handler := api.New(eval.New(store, exam, cfg), store, cfg, fullVersion(),
		ctx.Bool(enableAPILogsFlag.Name))
	url, closeAPI, err := api.Start(ctx.String(addrFlag.Name), handler)
	if err != nil {
		return err
	}
	defer func() { log.Info("stopping API server..."); closeAPI() }()
	log.Info("API server started", "url", url, "db", store.Path())

	if ctx.Bool(enableMetricsFlag.Name) {
		adminURL, closeAdmin, err := startAdminServer(ctx.String(adminAddrFlag.Name))
		if err != nil {
			return err
		}
		defer func() { log.Info("stopping admin server..."); closeAdmin() }()
		log.Info("admin server started", "url", adminURL)
	}

	<-handleExitSignal().Done()
	return nil
}

// startAdminServer serves metrics and liveness on a separate listener so the
// public surface stays limited to the evaluation endpoints.
func startAdminServer(addr string) (string, func(), error) {
	router := mux.NewRouter()
	router.PathPrefix("/metrics").Handler(metrics.HTTPHandler())
	health.New(fullVersion()).Mount(router)
	return api.Start(addr, router)
}

// evaluationRow is one aggregated reviewer-to-paper score, the shape produced
// by the collection step when grading without database access.
type evaluationRow struct {
	EvaluatorID string  `json:"evaluator_id"`
	TargetID    string  `json:"target_id"`
	Score       float64 `json:"score"`
}

func gradeAction(ctx *cli.Context) error {
	initLogger(ctx)
	cfg := config.Default()
	bindVancouverFlags(ctx, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	graph := vancouver.NewGraph()
	if evalPath := ctx.String(evaluationsFlag.Name); evalPath != "" {
		var rows []evaluationRow
		if err := readArtifact(evalPath, &rows); err != nil {
			return err
		}
		for _, row := range rows {
			graph.AddReview(row.EvaluatorID, row.TargetID, row.Score)
		}
	} else {
		store, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		subs, err := store.AllSubmissions()
		if err != nil {
			return err
		}
		// a reviewer's score for a paper is the sum over its questions
		type pair struct{ evaluator, target string }
		totals := make(map[pair]float64)
		for _, sub := range subs {
			totals[pair{sub.EvaluatorID, sub.TargetID}] += float64(sub.Score)
		}
		for p, total := range totals {
			graph.AddReview(p.evaluator, p.target, total)
		}
	}

	if graph.NumReviews() == 0 {
		return fmt.Errorf("no evaluations to grade")
	}

	res := graph.Run(cfg.Vancouver)
	artifact := vancouver.Grades(res, cfg.Vancouver)

	runDir, err := makeRunDir(ctx)
	if err != nil {
		return err
	}
	out := filepath.Join(runDir, "results.json")
	if err := writeArtifact(out, artifact); err != nil {
		return err
	}
	log.Info("final grades written", "students", artifact.Summary.Students, "path", out)

	if ctx.Bool(reportFlag.Name) {
		printReport(os.Stdout, artifact, graph.NumReviews())
	}
	return nil
}
