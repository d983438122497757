// Command pixelset edits a pixel-image dataset from the terminal. Every
// command hydrates from the local cache, reconciles with the remote store,
// applies one operation, and waits for its pushes to finish.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/banshee-data/pixelset/internal/cache"
	"github.com/banshee-data/pixelset/internal/config"
	"github.com/banshee-data/pixelset/internal/editor"
	"github.com/banshee-data/pixelset/internal/fsutil"
	"github.com/banshee-data/pixelset/internal/monitoring"
	"github.com/banshee-data/pixelset/internal/remotesync"
	"github.com/banshee-data/pixelset/internal/version"
)

// app carries the persistent flags and the resources opened for one command.
type app struct {
	configPath   string
	remoteURL    string
	cacheBackend string
	cacheDir     string
	offline      bool
	debug        bool

	cfg     *config.Config
	logger  *zap.Logger
	restore func()
	closers []func() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "pixelset",
		Short:         "Draw, label and sync pixel images for training",
		Version:       fmt.Sprintf("%s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to a .json or .yaml config file")
	pf.StringVar(&a.remoteURL, "remote", "", "Base URL of the dataset service")
	pf.StringVar(&a.cacheBackend, "cache", "", "Local cache backend: file, sqlite or memory")
	pf.StringVar(&a.cacheDir, "cache-dir", "", "Directory holding the local cache")
	pf.BoolVar(&a.offline, "offline", false, "Work on the local cache only; deletes are refused")
	pf.BoolVar(&a.debug, "debug", false, "Human-readable debug logging")

	root.AddCommand(
		newListCmd(a),
		newCreateCmd(a),
		newRenameCmd(a),
		newDeleteCmd(a),
		newSaveCmd(a),
		newShowCmd(a),
		newDeleteImageCmd(a),
		newSyncCmd(a),
		newExportCmd(a),
		newTrainCmd(a),
		newModelsCmd(a),
		newPredictCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) setup() error {
	a.cfg = &config.Config{}
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.remoteURL != "" {
		a.cfg.RemoteURL = &a.remoteURL
	}
	if a.cacheBackend != "" {
		a.cfg.CacheBackend = &a.cacheBackend
	}
	if a.cacheDir != "" {
		a.cfg.CacheDir = &a.cacheDir
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	if a.logger == nil {
		logger, err := monitoring.NewLogger(a.debug)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		a.logger = logger
	}
	a.restore = monitoring.Install(a.logger)
	return nil
}

func (a *app) teardown() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	if a.restore != nil {
		a.restore()
		a.restore = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return first
}

func (a *app) openCache() (cache.Cache, error) {
	dir := a.cfg.GetCacheDir()
	switch a.cfg.GetCacheBackend() {
	case config.CacheMemory:
		return cache.NewMemoryCache(), nil
	case config.CacheSQLite:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		c, err := cache.OpenSQLite(filepath.Join(dir, "cache.db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	default:
		return cache.NewFileCache(fsutil.OSFileSystem{}, dir), nil
	}
}

func (a *app) openEngine(ctx context.Context) (*remotesync.Engine, error) {
	client, err := remotesync.NewClient(a.cfg.GetRemoteURL(), &http.Client{Timeout: a.cfg.GetRequestTimeout()})
	if err != nil {
		return nil, err
	}
	// mutating requests need the anti-forgery cookie
	if err := client.Handshake(ctx); err != nil {
		monitoring.Logf("pixelset: remote %s unreachable, changes stay local: %v", a.cfg.GetRemoteURL(), err)
	}
	engine := remotesync.NewEngine(client)
	engine.OnPushFailure = func(m remotesync.Mutation, err error) {
		a.logger.Warn("change not saved remotely", zap.Stringer("mutation", m), zap.Error(err))
	}
	return engine, nil
}

// workspace opens a started workspace whose startup reconcile has finished.
func (a *app) workspace(ctx context.Context) (*editor.Workspace, error) {
	c, err := a.openCache()
	if err != nil {
		return nil, err
	}
	opts := editor.Options{Rows: a.cfg.GetGridRows(), Cols: a.cfg.GetGridCols(), Cache: c}
	if !a.offline {
		if opts.Engine, err = a.openEngine(ctx); err != nil {
			return nil, err
		}
	}
	w, err := editor.New(opts)
	if err != nil {
		return nil, err
	}
	w.Start(ctx)
	w.Wait()
	a.closers = append(a.closers, func() error { w.Wait(); return nil })
	return w, nil
}
