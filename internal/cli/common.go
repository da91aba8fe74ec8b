// Package cli wires the cobra command tree to the engine.
package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/auswm85/rung/internal/config"
	"github.com/auswm85/rung/internal/engine"
	rungerrors "github.com/auswm85/rung/internal/errors"
	"github.com/auswm85/rung/internal/git"
	"github.com/auswm85/rung/internal/output"
)

// App bundles the pieces every command needs
type App struct {
	Repo    *git.Repository
	Adapter git.Adapter
	Store   *engine.Store
	Config  *config.Config
	Engine  *engine.Engine
	Log     *output.Splog
}

// newApp opens the repository at the working directory and builds the
// engine over it
func newApp() (*App, error) {
	adapter, repo, err := git.NewAdapter(".")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(repo.Root())
	if err != nil {
		return nil, err
	}

	store := engine.NewStore(repo.RungDir())
	log, err := output.NewSplogWithLogFile(filepath.Join(repo.RungDir(), "rung.log"))
	if err != nil {
		return nil, err
	}

	return &App{
		Repo:    repo,
		Adapter: adapter,
		Store:   store,
		Config:  cfg,
		Engine:  engine.New(adapter, store, cfg, log),
		Log:     log,
	}, nil
}

// runApp is the shared command body: open the app, run fn, close logs
func runApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Log.Close()
	return fn(cmd.Context(), app)
}

// requireInitialized errors unless rung init has been run in this repo
func requireInitialized(app *App) error {
	if !app.Store.Initialized() {
		return fmt.Errorf("%w: run 'rung init' first", rungerrors.ErrNotInitialized)
	}
	return nil
}

// reportResult prints the outcome of a mutating operation. A paused
// result explains how to resume and returns a ConflictError so the
// process exits nonzero; a completed one lists what moved.
func reportResult(app *App, result *engine.Result) error {
	if result.Status == engine.StatusPaused {
		for _, file := range result.ConflictFiles {
			app.Log.Info("  %s", output.ColorRed(file))
		}
		app.Log.Tip("resolve the conflicts, stage the files, then run 'rung continue' (or 'rung abort' to roll back)")
		if len(result.Remaining) > 0 {
			app.Log.Info("still queued: %v", result.Remaining)
		}
		return rungerrors.NewConflictError(result.PausedAt, result.ConflictFiles)
	}

	if len(result.Completed) == 0 {
		app.Log.Info("nothing to do")
		return nil
	}
	for _, name := range result.Completed {
		app.Log.Info("%s %s", output.ColorGreen("✓"), name)
	}
	for _, note := range result.FoldedPRs {
		app.Log.Warn("%s had open pull request %s: close or retarget it manually",
			note.Branch, output.ColorPRNumber(note.Number))
	}
	return nil
}
