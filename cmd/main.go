package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fedragon/go-takeout/internal"
	"github.com/fedragon/go-takeout/internal/config"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "go-takeout",
		Usage: "migrate a Google Photos export into a dated, deduplicated tree with album links",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "directory holding the extracted Takeout archives",
				EnvVars: []string{"GO_TAKEOUT_SOURCE"},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "destination directory",
				EnvVars: []string{"GO_TAKEOUT_OUTPUT"},
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "decide everything, write nothing",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML configuration file",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "hash cache location",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "parallel hashers used while scanning the destination",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:  "link-duplicates",
				Usage: "also link duplicates into their albums, pointing at the copy they duplicate",
			},
			&cli.BoolFlag{
				Name:  "no-albums",
				Usage: "do not create the Albums directory",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "hash every file instead of using the hash cache",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	summary, err := internal.NewRunner(logger, cfg).Run(c.Context)
	if summary != nil {
		fmt.Fprintln(c.App.Writer, renderSummary(summary))
	}
	return err
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, _, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}

	if c.IsSet("source") {
		cfg.Source = c.String("source")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("db") {
		cfg.DBPath = c.String("db")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("link-duplicates") {
		cfg.LinkDuplicates = c.Bool("link-duplicates")
	}
	if c.Bool("no-albums") {
		cfg.Albums = false
	}
	cfg.NoCache = c.Bool("no-cache")
	cfg.DryRun = c.Bool("dry-run")

	if err := cfg.Normalize(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if fd := os.Stderr.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	return cfg.Build()
}
