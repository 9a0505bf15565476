package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/cheatsheet/internal/mcpserver"
	"github.com/starford/cheatsheet/internal/orchestrator"
	"github.com/starford/cheatsheet/internal/storage"
)

// RunSync runs one sync for a course and writes the result to w as JSON.
func RunSync(ctx context.Context, course string, in orchestrator.Input, w io.Writer, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if _, ok := app.config.Course(course); !ok {
		return fmt.Errorf("unknown course %q", course)
	}

	logger := app.newLogger()
	rt, err := app.start(logger, orchestrator.WithNotifier(orchestrator.NotifierFunc(func(ev orchestrator.Event) {
		logger.Debug("sync state",
			slog.String("session", ev.SessionID),
			slog.String("course", ev.Course),
			slog.String("state", string(ev.State)))
	})))
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.svc.Topics(ctx, course, in)
	if err != nil {
		return fmt.Errorf("sync %s: %w", course, err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	logger := app.newLogger()
	slog.SetDefault(logger)

	rt, err := app.start(logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("MCP server starting", slog.String("source_mode", app.config.Source.Mode))
	return mcpserver.New(rt.svc).ServeStdio()
}

// RunMirror downloads the gradle file and every course's topic files from
// the configured source into dest, laid out so that local mode can serve it.
func RunMirror(ctx context.Context, dest string, prune bool, opts ...Option) (storage.MirrorStats, error) {
	app, err := newApplication(opts)
	if err != nil {
		return storage.MirrorStats{}, err
	}
	cfg := app.config
	logger := app.newLogger()

	src, _, err := openSource(cfg)
	if err != nil {
		return storage.MirrorStats{}, err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return storage.MirrorStats{}, fmt.Errorf("create mirror dir: %w", err)
	}
	dst, err := storage.NewFS(dest, cfg.Source.Layout())
	if err != nil {
		return storage.MirrorStats{}, err
	}

	stats, err := storage.Mirror(ctx, src, dst, cfg.Courses, prune, logger)
	if err != nil {
		return stats, err
	}
	logger.Info("mirror done",
		slog.String("dest", dst.Root()),
		slog.Int("written", stats.Written),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("removed", stats.Removed))
	return stats, nil
}
