package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/stockcount/cmd/stockcount/cli"
	"github.com/odyssey-erp/stockcount/internal/app"
	"github.com/odyssey-erp/stockcount/internal/catalog"
	"github.com/odyssey-erp/stockcount/internal/counting"
	"github.com/odyssey-erp/stockcount/internal/observability"
	"github.com/odyssey-erp/stockcount/internal/session"
	"github.com/odyssey-erp/stockcount/internal/storage"
	"github.com/odyssey-erp/stockcount/jobs"
)

const usage = `usage: stockcount [command] [flags]

commands:
  serve                       run the HTTP API (default)
  import [-json] <file.csv>   import a catalog file into the persisted session
  export [-format csv|xlsx] [-location loja-1] [-dir .]
                              write the count ledger to a file
  backup [-location loja-1]   enqueue a count:backup task
  queue                       print queue statistics

import and export work on the persisted session directly. Run them while the
server is stopped: a running server keeps its own copy and overwrites the
stored session on its next change.
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	var code int
	switch command {
	case "serve":
		code = serve(ctx, cfg, logger)
	case "import", "export":
		code = offline(ctx, cfg, logger, command, args)
	case "backup", "queue":
		code = queue(ctx, cfg, command, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		code = 2
	}
	os.Exit(code)
}

func openSession(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*session.Service, storage.Store, error) {
	store, err := storage.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, nil, err
	}
	ids, err := catalog.NewSnowflakeSource(cfg.IDNode)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("id source: %w", err)
	}
	mirror := storage.NewMirror(store, cfg.StoreKey, logger)
	svc := session.NewService(mirror, logger, session.Config{Charset: cfg.ImportCharset, IDs: ids})
	report, err := svc.Load(ctx)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	if report.Corrupt {
		logger.Warn("persisted state unreadable, starting empty", slog.String("key", cfg.StoreKey))
	}
	return svc, store, nil
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	svc, store, err := openSession(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("store close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	if err := metrics.ObserveSession(svc); err != nil {
		logger.Warn("subscribe metrics", slog.Any("error", err))
	}

	var inspector *asynq.Inspector
	if cfg.QueueEnabled() {
		inspector = asynq.NewInspector(redisOpt(cfg))
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionHandler: session.NewHandler(logger, svc, cfg.ImportMaxBytes),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := group.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		return 1
	}
	return 0
}

func offline(ctx context.Context, cfg *app.Config, logger *slog.Logger, command string, args []string) int {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print a JSON summary")
	format := fs.String("format", "csv", "export format: csv or xlsx")
	location := fs.String("location", "", "location used in the export file name")
	dir := fs.String("dir", ".", "directory for the exported file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	svc, store, err := openSession(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		return 1
	}
	defer func() { _ = store.Close() }()

	counts, err := cli.NewCountsCLI(svc)
	if err != nil {
		logger.Error("init cli", slog.Any("error", err))
		return 1
	}
	if command == "import" {
		return counts.ImportCommand(ctx, cli.ImportOptions{Path: fs.Arg(0), JSONOutput: *jsonOut})
	}
	return counts.ExportCommand(ctx, cli.ExportOptions{Dir: *dir, Format: *format, Location: *location})
}

func queue(ctx context.Context, cfg *app.Config, command string, args []string) int {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	location := fs.String("location", cfg.BackupLocation, "location used in the backup file name")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	c, err := cli.NewJobsCLI(redisOpt(cfg))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = c.Close() }()

	if command == "backup" {
		info, err := c.Trigger(ctx, jobs.TaskCountBackup, counting.Location(*location))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	}
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	scheduled, err := c.ListScheduled(ctx, 10)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, t := range scheduled {
		fmt.Printf("  %s %s next=%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
	}
	return 0
}

func redisOpt(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}
