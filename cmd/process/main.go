/*
main.go - Batch entry point

PURPOSE:
  Processes one batch of extracts from disk without the HTTP server:
  reads two sales extracts and the attendance extract, runs the engine
  against the configured store, and prints a JSON summary to stdout.
  Logs go to stderr.

USAGE:
  process -sales LS_Sales.xlsx,NFS_Sales.xlsx -attendance Attendance.xlsx [-db incentives.db]

  Exit status is 1 when the run is rejected or fails; nothing is
  written in that case.
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/app"
	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/incentive"
	"github.com/warp/incentive-engine/ingest"
	"github.com/warp/incentive-engine/logger"
)

type summary struct {
	RunID      string            `json:"run_id"`
	LatestDate string            `json:"latest_date,omitempty"`
	Records    int               `json:"records"`
	Stats      incentive.Stats   `json:"stats"`
	Pools      []poolSummary     `json:"pools"`
	Alerts     []incentive.Alert `json:"alerts"`
	Top        *topEarner        `json:"top_earner,omitempty"`
}

type poolSummary struct {
	Date    string          `json:"date"`
	Total   decimal.Decimal `json:"total"`
	Helpers []string        `json:"helpers"`
	Share   decimal.Decimal `json:"share"`
}

type topEarner struct {
	Staff     string          `json:"staff"`
	Incentive decimal.Decimal `json:"incentive"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	sales := flag.String("sales", "", "Comma-separated sales extract paths")
	attendance := flag.String("attendance", "", "Attendance extract path")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "Store driver: sqlite, postgres or memory")
	flag.StringVar(&cfg.RosterFile, "roster", cfg.RosterFile, "YAML roster file")
	flag.StringVar(&cfg.SchemeFile, "scheme", cfg.SchemeFile, "YAML or JSON scheme file")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	flag.Parse()

	log := logger.New(cfg.LogLevel, true)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	out, err := process(ctx, a, splitPaths(*sales), *attendance)
	if err != nil {
		log.Error().Err(err).Bool("structural", generic.IsStructural(err)).Msg("run failed")
		a.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("failed to write summary")
	}
}

func process(ctx context.Context, a *app.App, salesPaths []string, attendancePath string) (summary, error) {
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	open := func(path string) (ingest.Upload, error) {
		f, err := os.Open(path)
		if err != nil {
			return ingest.Upload{}, fmt.Errorf("failed to open %s: %w", path, err)
		}
		files = append(files, f)
		return ingest.Upload{Name: path, Body: f}, nil
	}

	var uploads []ingest.Upload
	for _, p := range salesPaths {
		u, err := open(p)
		if err != nil {
			return summary{}, err
		}
		uploads = append(uploads, u)
	}
	var att *ingest.Upload
	if attendancePath != "" {
		u, err := open(attendancePath)
		if err != nil {
			return summary{}, err
		}
		att = &u
	}

	batch, err := a.Reader.LoadBatch(uploads, att)
	if err != nil {
		return summary{}, err
	}
	result, err := a.Engine.Run(ctx, batch, a.Directory.Roster())
	if err != nil {
		return summary{}, err
	}

	out := summary{
		RunID:   string(result.RunID),
		Records: len(result.Records),
		Stats:   result.Stats,
		Pools:   make([]poolSummary, len(result.Pools)),
		Alerts:  result.Alerts,
	}
	for i, p := range result.Pools {
		out.Pools[i] = poolSummary{Date: p.Date.String(), Total: p.Total.Round(2), Helpers: p.Helpers, Share: p.Share.Round(2)}
	}
	if !result.LatestDate.IsZero() {
		out.LatestDate = result.LatestDate.String()

		f := generic.OnDate(result.LatestDate)
		f.ExcludePool = true
		top, ok, err := generic.NewLedger(a.Store).Top(ctx, f)
		if err != nil {
			return summary{}, fmt.Errorf("failed to compute top earner: %w", err)
		}
		if ok {
			out.Top = &topEarner{Staff: top.Staff, Incentive: top.Incentive.Round(2)}
		}
	}
	return out, nil
}

func splitPaths(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
