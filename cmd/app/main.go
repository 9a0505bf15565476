package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/cheatsheet/internal"
	"github.com/starford/cheatsheet/internal/orchestrator"
	pkgconfig "github.com/starford/cheatsheet/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func syncCourse(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	in := orchestrator.Input{
		VersionName:   cmd.String("version-name"),
		VersionSuffix: cmd.String("version-suffix"),
	}
	return internal.RunSync(ctx, cmd.String("course"), in, os.Stdout,
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func mirror(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	_, err = internal.RunMirror(ctx, cmd.String("dest"), cmd.Bool("prune"), internal.WithConfig(cfg))
	return err
}

func main() {
	cmd := &cli.Command{
		Name:   "cheatsheet",
		Usage:  "Version-aware sync and API for Kotlin cheat sheet topics hosted on GitHub",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and SSE event stream",
				Action: serve,
			},
			{
				Name:   "sync",
				Usage:  "Sync one course and print its topics as JSON",
				Action: syncCourse,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "course", Usage: "Course name", Required: true},
					&cli.StringFlag{Name: "version-name", Usage: "Published version; read from the gradle file when empty"},
					&cli.StringFlag{Name: "version-suffix", Usage: "Changed topic IDs, e.g. -ids:[4,7]"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:   "mirror",
				Usage:  "Download every course into a local checkout for offline serving",
				Action: mirror,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dest", Usage: "Checkout directory", Value: "./checkout"},
					&cli.BoolFlag{Name: "prune", Usage: "Remove topic files that no longer exist upstream"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
