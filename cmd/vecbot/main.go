package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/config"
	logpkg "github.com/kailas-cloud/vecbot/internal/logger"
	"github.com/kailas-cloud/vecbot/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "vecbot",
		Usage:   "Vector search over an enriched document index, with a bot messaging extension",
		Version: fmt.Sprintf("%s (%s, %s)", version.Version, version.Commit, version.Date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Config environment, selects config/<env>.yaml (local, dev, docker, prod)",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Explicit config file path, overrides --env lookup",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			setupCommand(),
			provisionCommand(),
			describeCommand(),
			queryCommand(),
			embedCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads config, builds the logger and backends, and runs fn under a signal-aware context.
func withApp(fn func(ctx context.Context, c *cli.Context, a *app) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		env := c.String("env")

		var (
			cfg config.Config
			err error
		)
		if path := c.String("config"); path != "" {
			cfg, err = config.LoadFile(path)
		} else {
			cfg, err = config.Load(env)
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Logging.Level
		if override := c.String("log-level"); override != "" {
			level = override
		}
		logger, err := logpkg.NewLogger(env, level)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		logger.Debug("Starting vecbot",
			zap.String("command", c.Command.Name),
			zap.String("version", version.Version),
			zap.String("commit", version.Commit),
			zap.String("env", env),
		)

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logpkg.ContextWithLogger(ctx, logger)

		a, err := newApp(ctx, env, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(ctx, c, a)
	}
}
