package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/GEGE-UNESP/ismr-downloader/internal/api"
	"github.com/GEGE-UNESP/ismr-downloader/internal/auth"
	"github.com/GEGE-UNESP/ismr-downloader/internal/config"
	"github.com/GEGE-UNESP/ismr-downloader/internal/engine"
	"github.com/GEGE-UNESP/ismr-downloader/internal/progress"
	"github.com/GEGE-UNESP/ismr-downloader/internal/ratelimit"
	"github.com/GEGE-UNESP/ismr-downloader/internal/report"
	"github.com/GEGE-UNESP/ismr-downloader/internal/storage"
	"github.com/GEGE-UNESP/ismr-downloader/internal/timerange"
)

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)

	configPath := fs.String("config", "", "Path to YAML config file")
	envFile := fs.String("env", ".env", "Path to .env file with credentials")
	stations := fs.String("stations", "", "Comma-separated station codes (e.g. PRU2,SJCU)")
	dataType := fs.String("type", "", "Data type: ismr, ismr1min, sbf, or rinex")
	start := fs.String("start", "", "Range start (2006-01-02 or 2006-01-02T15:04:05)")
	end := fs.String("end", "", "Range end, inclusive for date-only values")
	maxDays := fs.Int("max-days", 0, "Maximum days per request chunk")
	workers := fs.Int("workers", 0, "Number of parallel fetch workers")
	rpm := fs.Int("rpm", 0, "Request budget per rolling minute")
	overwrite := fs.Bool("overwrite", false, "Re-download artifacts that already exist")
	forceAuth := fs.Bool("force-auth", false, "Ignore the cached token and authenticate from scratch")
	output := fs.String("output", "", "Output directory or bucket URL (e.g. downloads, s3://bucket/prefix)")
	logsDir := fs.String("logs", "", "Directory for run logs and file lists")
	showProgress := fs.Bool("progress", false, "Show a live progress line")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: ismrget fetch [options]

Download station data over a time range. The range is split into
chunks, fetched by parallel workers under a shared request budget, and
stored under deterministic names so interrupted runs resume by skipping
what is already present.

Credentials come from ISMR_EMAIL and ISMR_PASSWORD (or a .env file).

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	// Missing .env is fine; the variables may already be exported.
	_ = godotenv.Load(*envFile)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	cfg = cfg.Merge(config.Config{
		Stations:          config.SplitStations(*stations),
		DataType:          *dataType,
		Start:             *start,
		End:               *end,
		MaxDays:           *maxDays,
		Workers:           *workers,
		RequestsPerMinute: *rpm,
		Overwrite:         *overwrite,
		OutputDir:         *output,
		LogsDir:           *logsDir,
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitAuthFailed
	}

	spec, err := cfg.Spec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[ismr] Received interrupt, shutting down...")
		cancel()
	}()

	return fetch(ctx, cfg, creds, spec, *showProgress, *forceAuth)
}

func fetch(ctx context.Context, cfg config.Config, creds config.Credentials, spec engine.RequestSpec, showProgress, forceAuth bool) int {
	stamp := time.Now().Format("20060102_150405")

	if err := os.MkdirAll(cfg.LogsDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logs dir: %v\n", err)
		return ExitGeneralError
	}
	logFile, err := os.Create(filepath.Join(cfg.LogsDir, "run_"+stamp+".log"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating run log: %v\n", err)
		return ExitGeneralError
	}
	defer logFile.Close()
	filesList, err := os.Create(filepath.Join(cfg.LogsDir, "downloaded_files_"+stamp+".txt"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating files list: %v\n", err)
		return ExitGeneralError
	}
	defer filesList.Close()

	// With the live progress line on, log lines go to the file only.
	var logOut io.Writer = io.MultiWriter(logFile, os.Stderr)
	if showProgress {
		logOut = logFile
	}
	logger := slog.New(slog.NewTextHandler(logOut, nil))

	client := api.NewClient(cfg.APIOptions())
	tokens := auth.NewStore(auth.Options{
		CachePath:    cfg.TokenFile,
		Authenticate: client.AuthFunc(api.Credentials{Email: creds.Email, Password: creds.Password}),
		Logger:       logger,
	})
	if forceAuth {
		if _, err := tokens.ForceRefresh(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitAuthFailed
		}
	}

	store, err := storage.Open(ctx, cfg.OutputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		return ExitStorageError
	}
	defer store.Close()

	ranges, err := timerange.Split(spec.Start, spec.End, spec.MaxDays)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	totalChunks := len(ranges) * len(spec.Stations)

	sinks := []engine.Sink{report.NewLogSink(logger, filesList)}
	var reporter *progress.Reporter
	if showProgress {
		reporter = progress.NewReporter(progress.Options{
			TotalChunks: totalChunks,
			Workers:     spec.Workers,
		})
		reporter.Start()
		sinks = append(sinks, reporter)
	}

	orch := &engine.Orchestrator{
		Pool: &engine.Pool{
			Workers:   spec.Workers,
			Client:    client,
			Tokens:    tokens,
			Limiter:   ratelimit.New(spec.RequestsPerMinute),
			Store:     store,
			Policy:    cfg.Policy(),
			Overwrite: spec.Overwrite,
			Logger:    logger,
		},
		Sink:   report.Multi(sinks...),
		Logger: logger,
	}

	started := time.Now()
	summary, runErr := orch.Run(ctx, spec)
	if reporter != nil {
		reporter.Stop()
	}

	report.WriteSummary(os.Stdout, summary, time.Since(started))

	switch {
	case errors.Is(runErr, auth.ErrAuthFailed):
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return ExitAuthFailed
	case errors.Is(runErr, api.ErrMaintenance):
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		fmt.Fprintln(os.Stderr, "[ismr] Service under maintenance, run again later to resume")
		return ExitMaintenance
	case runErr != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return ExitGeneralError
	case summary.Failed > 0:
		fmt.Fprintln(os.Stderr, "[ismr] Some chunks failed, run again to retry them")
		return ExitPartialFailure
	}
	return ExitSuccess
}
