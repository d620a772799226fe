package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/daverre/graphpress/internal"
	pkgconfig "github.com/daverre/graphpress/pkg/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func run(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("source") {
		cfg.Source.Path = cmd.String("source")
	}
	if cmd.IsSet("output") {
		cfg.Output.Dir = cmd.String("output")
	}
	if cmd.Bool("watch") {
		cfg.Source.Watch = true
	}
	if cmd.Bool("serve") {
		cfg.Serve.Enabled = true
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "graphpress",
		Usage:  "Render a Roam/Logseq graph export into a static web site",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Path to the graph export file (overrides config)",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Output directory for rendered pages (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Re-run the export when the source file changes",
			},
			&cli.BoolFlag{
				Name:  "serve",
				Usage: "Serve the output directory over HTTP for preview",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
