package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/backlinker/internal"
	pkgconfig "github.com/starford/backlinker/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("root") {
		cfg.Corpus.Root = cmd.String("root")
	}
	if cmd.IsSet("log-level") {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}
	if cmd.IsSet("sqlite") {
		cfg.SQLite.Path = cmd.String("sqlite")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func action(mode internal.Mode) func(context.Context, *cli.Command) error {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithMode(mode),
			internal.WithDryRun(cmd.Bool("dry-run")),
			internal.WithVersion(version),
		}
		if cmd.Bool("report") {
			opts = append(opts, internal.WithReport(os.Stdout))
		}

		if err := internal.Run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "backlinker",
		Usage:   "Maintain \"mentioned by\" backlink blocks across a corpus of Markdown notes",
		Version: version,
		Action:  action(internal.ModeUpdate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("BACKLINKER_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Corpus root directory",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report documents that would change without writing them",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "sqlite",
				Usage: "Path of the SQLite snapshot database",
			},
			&cli.BoolFlag{
				Name:  "report",
				Usage: "Print the JSON run summary to stdout",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "update",
				Usage:  "Recompute backlinks once and rewrite changed blocks (default)",
				Action: action(internal.ModeUpdate),
			},
			{
				Name:   "watch",
				Usage:  "Update, then keep updating whenever the corpus changes",
				Action: action(internal.ModeWatch),
			},
			{
				Name:   "serve",
				Usage:  "Watch the corpus and serve the backlink API, events and metrics over HTTP",
				Action: action(internal.ModeServe),
			},
			{
				Name:   "mcp",
				Usage:  "Serve backlink tools over the Model Context Protocol on stdio",
				Action: action(internal.ModeMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
