package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"pricegrab/internal/appender"
	"pricegrab/internal/config"
	apperrors "pricegrab/internal/errors"
	"pricegrab/internal/fetch"
	"pricegrab/internal/infrastructure"
	"pricegrab/internal/market"
	"pricegrab/internal/recorder"
	"pricegrab/internal/scheduler"
	"pricegrab/internal/store"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC RECOVERED: %v\n", r)
			fmt.Printf("Stack trace:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration")
	storePath := flag.String("store", "", "override the workbook path")
	sourceURL := flag.String("url", "", "override the quote page URL")
	useBrowser := flag.Bool("browser", false, "fetch through headless Chrome instead of plain HTTP")
	initStore := flag.Bool("init", false, "create a fresh workbook and exit")
	daemon := flag.Bool("daemon", false, "stay resident and append on the configured cron schedule")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Error: invalid configuration: %v\n", err)
		return 1
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *sourceURL != "" {
		cfg.Source.URL = *sourceURL
	}
	if *useBrowser {
		cfg.Source.UseBrowser = true
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("Warning: failed to initialize logger, using default: %v\n", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	if *initStore {
		w, err := store.Create(cfg.Store.Path, cfg.Store.Sheet, logger)
		if err != nil {
			fmt.Printf("Error: could not create workbook: %v\n", err)
			return 1
		}
		w.Close()
		fmt.Printf("Created %s\n", cfg.Store.Path)
		return 0
	}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Audit.Enabled {
		sqliteRec, err := recorder.NewSQLiteRecorder(cfg.Audit.DBPath, logger)
		if err != nil {
			fmt.Printf("Error: could not open audit database: %v\n", err)
			return 1
		}
		rec = sqliteRec
	}
	defer rec.Close()

	app := buildAppender(cfg, logger)

	if *daemon {
		return runDaemon(cfg, app, rec, logger)
	}

	outcome, err := runOnce(context.Background(), cfg, app, rec, logger)
	return report(outcome, err)
}

// buildAppender wires the fetch collaborator, the trading calendar and the
// week-boundary weekday into the append engine.
func buildAppender(cfg *config.Config, logger *slog.Logger) *appender.Appender {
	var fetcher fetch.Fetcher
	if cfg.Source.UseBrowser {
		fetcher = fetch.NewBrowserFetcher(cfg.Source.URL, true, cfg.Source.Timeout, logger)
	} else {
		fetcher = fetch.NewHTTPFetcher(cfg.Source.URL, cfg.Source.UserAgent, cfg.Source.Timeout, logger)
	}

	// Validated at config load.
	weekday, _ := cfg.WeekCloseWeekday()

	opts := []appender.Option{appender.WithLogger(logger)}
	if cfg.Calendar.Enabled {
		opts = append(opts, appender.WithCalendar(market.New(cfg.Calendar.MIC)))
	}
	return appender.New(fetcher, weekday, opts...)
}

// runOnce performs one complete append: open the workbook, run the engine,
// record the result.
func runOnce(ctx context.Context, cfg *config.Config, app *appender.Appender, rec recorder.Recorder, logger *slog.Logger) (*appender.Outcome, error) {
	started := time.Now()

	w, err := store.Open(cfg.Store.Path, cfg.Store.Sheet, logger)
	if err != nil {
		recordRun(rec, logger, nil, err, started)
		return nil, err
	}
	defer w.Close()

	outcome, err := app.Run(ctx, w)
	recordRun(rec, logger, outcome, err, started)
	return outcome, err
}

// recordRun writes the audit record; audit failures are logged, never
// fatal.
func recordRun(rec recorder.Recorder, logger *slog.Logger, outcome *appender.Outcome, runErr error, started time.Time) {
	record := &recorder.RunRecord{
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if outcome != nil {
		record.RunID = outcome.RunID
		record.Status = string(outcome.Status)
		record.Row = outcome.Row
		record.TradeDate = outcome.TradeDate
		record.MarkedRow = outcome.MarkedRow
		record.LimitBuilt = outcome.LimitBuilt
	} else {
		record.Status = "failed"
		record.ErrorType = string(apperrors.TypeOf(runErr))
		if runErr != nil {
			record.Message = runErr.Error()
		}
	}

	if err := rec.RecordRun(record); err != nil {
		logger.Error("failed to record run", slog.String("error", err.Error()))
	}
}

// report maps the run result onto the process exit contract.
func report(outcome *appender.Outcome, err error) int {
	if err == nil {
		if outcome.Status == appender.StatusNoUpdate {
			fmt.Println("Markets are closed today. No update.")
		} else {
			fmt.Println("File update confirmation.")
		}
		return 0
	}

	if apperrors.IsType(err, apperrors.ErrTypeStoreBusy) {
		fmt.Println("Could not update, the workbook must be closed on this device. Close it and re-run.")
		return 1
	}
	fmt.Printf("Error: %v\n", err)
	return 1
}

// runDaemon keeps the process resident and appends on the cron schedule
// until interrupted.
func runDaemon(cfg *config.Config, app *appender.Appender, rec recorder.Recorder, logger *slog.Logger) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(ctx, func(ctx context.Context) error {
		_, err := runOnce(ctx, cfg, app, rec, logger)
		return err
	}, logger)

	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		fmt.Printf("Error: invalid schedule %q: %v\n", cfg.Schedule.Cron, err)
		return 1
	}

	sched.Start()
	logger.Info("daemon running",
		slog.String("schedule", cfg.Schedule.Cron),
		slog.String("store", cfg.Store.Path))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	sched.Stop()
	return 0
}
