package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/goccy/go-json"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"

	"github.com/blackmichael/bluesky-ingest/internal/config"
	"github.com/blackmichael/bluesky-ingest/internal/domain"
	"github.com/blackmichael/bluesky-ingest/internal/firehose"
	"github.com/blackmichael/bluesky-ingest/internal/httpserver"
	"github.com/blackmichael/bluesky-ingest/internal/scylla"
	"github.com/blackmichael/bluesky-ingest/internal/sqlite"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:    "bluesky-ingest",
		Usage:   "persist Bluesky profiles, likes and posts into ScyllaDB",
		Version: versioninfo.Short(),
	}

	def := config.Default()
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "state-path",
			Usage:   "SQLite file for dead letters and the firehose cursor",
			Value:   def.StatePath,
			EnvVars: []string{"INGEST_STATE_PATH"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn or error",
			Value:   def.LogLevel,
			EnvVars: []string{"INGEST_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		deadLettersCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:      "run",
	Usage:     "consume the firehose and write to scylla",
	ArgsUsage: "[scylla-host]",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "scylla-hosts",
			Usage:   "contact points of the cluster; a positional host overrides this",
			Value:   cli.NewStringSlice(config.Default().ScyllaHosts...),
			EnvVars: []string{"SCYLLA_HOSTS"},
		},
		&cli.IntFlag{
			Name:    "scylla-port",
			Value:   config.Default().ScyllaPort,
			EnvVars: []string{"SCYLLA_PORT"},
		},
		&cli.StringFlag{
			Name:    "scylla-keyspace",
			Value:   config.Default().Keyspace,
			EnvVars: []string{"SCYLLA_KEYSPACE"},
		},
		&cli.StringFlag{
			Name:    "scylla-datacenter",
			Usage:   "local datacenter, used for replication and host selection",
			Value:   config.Default().Datacenter,
			EnvVars: []string{"SCYLLA_DATACENTER"},
		},
		&cli.StringFlag{
			Name:    "scylla-username",
			Value:   config.Default().Username,
			EnvVars: []string{"SCYLLA_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "scylla-password",
			Value:   config.Default().Password,
			EnvVars: []string{"SCYLLA_PASSWORD"},
		},
		&cli.IntFlag{
			Name:    "scylla-replication-factor",
			Value:   config.Default().ReplicationFactor,
			EnvVars: []string{"SCYLLA_REPLICATION_FACTOR"},
		},
		&cli.DurationFlag{
			Name:    "scylla-timeout",
			Value:   config.Default().ScyllaTimeout,
			EnvVars: []string{"SCYLLA_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "firehose-url",
			Usage:   "Jetstream subscribe endpoint",
			Value:   config.Default().FirehoseURL,
			EnvVars: []string{"INGEST_FIREHOSE_URL"},
		},
		&cli.StringFlag{
			Name:    "replay-file",
			Usage:   "read Jetstream messages from a JSONL file instead of the firehose",
			EnvVars: []string{"INGEST_REPLAY_FILE"},
		},
		&cli.StringFlag{
			Name:    "ops-listen",
			Usage:   "IP or address, and port, to listen on for health and metrics; empty disables",
			Value:   config.Default().OpsAddr,
			EnvVars: []string{"INGEST_OPS_LISTEN"},
		},
		&cli.UintFlag{
			Name:    "write-attempts",
			Usage:   "attempts per logical write, the first one included",
			Value:   config.Default().WriteAttempts,
			EnvVars: []string{"INGEST_WRITE_ATTEMPTS"},
		},
		&cli.DurationFlag{
			Name:    "write-initial-backoff",
			Value:   config.Default().WriteInitialBackoff,
			EnvVars: []string{"INGEST_WRITE_INITIAL_BACKOFF"},
		},
		&cli.DurationFlag{
			Name:    "write-max-backoff",
			Value:   config.Default().WriteMaxBackoff,
			EnvVars: []string{"INGEST_WRITE_MAX_BACKOFF"},
		},
		&cli.DurationFlag{
			Name:    "write-max-elapsed",
			Usage:   "total time budget of one logical write; 0 means attempts only",
			Value:   config.Default().WriteMaxElapsed,
			EnvVars: []string{"INGEST_WRITE_MAX_ELAPSED"},
		},
	},
	Action: func(cctx *cli.Context) error {
		cfg := configFromCLI(cctx)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		level, _ := cfg.Level()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Enable OTLP HTTP exporter when OTEL_EXPORTER_OTLP_ENDPOINT is set,
		// e.g. http://localhost:4318.
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			shutdown, err := setupTracing(ctx, ep)
			if err != nil {
				return err
			}
			defer shutdown()
		}

		state, err := sqlite.NewRepository(ctx, cfg.StatePath)
		if err != nil {
			return fmt.Errorf("open state database: %w", err)
		}
		defer state.Close()

		store, err := scylla.NewRepository(ctx, cfg.ScyllaOptions(), logger)
		if err != nil {
			return fmt.Errorf("create scylla repository: %w", err)
		}
		defer store.Close()

		if cfg.OpsAddr != "" {
			ops := httpserver.NewServer(cfg.OpsAddr, versioninfo.Short(), logger)
			go func() {
				if err := ops.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("ops server exited with error", "error", err)
				}
			}()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := ops.Shutdown(ctx); err != nil {
					logger.Error("error shutting down ops server", "error", err)
				}
			}()
		}

		dispatcher := domain.NewDispatcher(
			domain.NewTransformer(logger),
			domain.NewExecutor(store, cfg.RetryPolicy(), logger),
			state,
			logger,
		)

		var src domain.EventSource
		if cfg.ReplayFile != "" {
			f, err := os.Open(cfg.ReplayFile)
			if err != nil {
				return fmt.Errorf("open replay file: %w", err)
			}
			defer f.Close()
			src = firehose.NewFileSource(f)
			logger.Info("replaying events from file", "path", cfg.ReplayFile)
		} else {
			subscriber := firehose.NewSubscriber(cfg.FirehoseURL, state, logger)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := subscriber.Close(ctx); err != nil {
					logger.Error("failed to save cursor on shutdown", "error", err)
				}
			}()
			src = subscriber
		}

		logger.Info("ingest started", "version", versioninfo.Short(), "hosts", cfg.ScyllaHosts, "keyspace", cfg.Keyspace)

		err = dispatcher.Run(ctx, src)
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			logger.Info("received signal, shutting down")
			return nil
		}
		if err != nil {
			return fmt.Errorf("ingest stopped: %w", err)
		}
		logger.Info("event source exhausted, shutting down")
		return nil
	},
}

var deadLettersCmd = &cli.Command{
	Name:  "dead-letters",
	Usage: "print the most recent dead letters as JSON lines",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Value: 50,
		},
	},
	Action: func(cctx *cli.Context) error {
		state, err := sqlite.NewRepository(cctx.Context, cctx.String("state-path"))
		if err != nil {
			return fmt.Errorf("open state database: %w", err)
		}
		defer state.Close()

		dls, err := state.ListDeadLetters(cctx.Context, cctx.Int("limit"))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		for _, dl := range dls {
			if err := enc.Encode(dl); err != nil {
				return err
			}
		}
		return nil
	},
}

func configFromCLI(cctx *cli.Context) *config.Config {
	cfg := &config.Config{
		ScyllaHosts:         cctx.StringSlice("scylla-hosts"),
		ScyllaPort:          cctx.Int("scylla-port"),
		Keyspace:            cctx.String("scylla-keyspace"),
		Datacenter:          cctx.String("scylla-datacenter"),
		Username:            cctx.String("scylla-username"),
		Password:            cctx.String("scylla-password"),
		ReplicationFactor:   cctx.Int("scylla-replication-factor"),
		ScyllaTimeout:       cctx.Duration("scylla-timeout"),
		FirehoseURL:         cctx.String("firehose-url"),
		ReplayFile:          cctx.String("replay-file"),
		StatePath:           cctx.String("state-path"),
		OpsAddr:             cctx.String("ops-listen"),
		LogLevel:            cctx.String("log-level"),
		WriteAttempts:       cctx.Uint("write-attempts"),
		WriteInitialBackoff: cctx.Duration("write-initial-backoff"),
		WriteMaxBackoff:     cctx.Duration("write-max-backoff"),
		WriteMaxElapsed:     cctx.Duration("write-max-elapsed"),
	}
	if host := cctx.Args().First(); host != "" {
		cfg.ScyllaHosts = []string{host}
	}
	return cfg
}

func setupTracing(ctx context.Context, endpoint string) (func(), error) {
	slog.Info("setting up trace exporter", "endpoint", endpoint)
	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "bluesky-ingest"),
			attribute.String("service.version", versioninfo.Short()),
			attribute.String("environment", os.Getenv("ENVIRONMENT")),
		)),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
	}, nil
}
