package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go-modguard/internal/bootstrap"
	"go-modguard/internal/config"
	"go-modguard/internal/logging"

	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:  "modguard",
		Usage: "moderation abuse-detection and escalation bot",
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to the JSON config file (missing file means defaults)",
			Value:   "config.json",
			EnvVars: []string{"MODGUARD_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "database-path",
			Usage:   "sqlite database file",
			EnvVars: []string{"MODGUARD_DATABASE_PATH"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "keep sliding windows in redis instead of process memory",
			EnvVars: []string{"MODGUARD_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "debug, info, warn or error",
			EnvVars: []string{"MODGUARD_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-file",
			Usage:   "also write JSON logs to this file",
			EnvVars: []string{"MODGUARD_LOG_FILE"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			EnvVars: []string{"MODGUARD_METRICS_LISTEN"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		configCmd,
	}

	return app.Run(args)
}

// loadConfig reads the config file and lets explicitly set flags win.
func loadConfig(cctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cctx.IsSet("database-path") {
		cfg.Database.Path = cctx.String("database-path")
	}
	if cctx.IsSet("redis-url") {
		cfg.State.Backend = "redis"
		cfg.State.RedisURL = cctx.String("redis-url")
	}
	if cctx.IsSet("log-level") {
		cfg.Log.Level = cctx.String("log-level")
	}
	if cctx.IsSet("log-file") {
		cfg.Log.File = cctx.String("log-file")
	}
	if cctx.IsSet("metrics-listen") {
		cfg.Metrics.Listen = cctx.String("metrics-listen")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "connect to Discord and run the engine",
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}

		logger, closer, err := logging.New(cfg.Log.Level, cfg.Log.File)
		if err != nil {
			return err
		}
		defer closer.Close()
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b := bootstrap.New(cfg, logger)
		if err := b.Initialize(); err != nil {
			return err
		}

		logger.Info("starting modguard", "database", cfg.Database.Path, "metrics", cfg.Metrics.Listen)
		if err := b.Run(ctx); err != nil {
			return err
		}
		logger.Info("shutdown complete")
		return nil
	},
}

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "print the effective configuration",
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		if cfg.Bot.Token != "" {
			cfg.Bot.Token = "<redacted>"
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}
