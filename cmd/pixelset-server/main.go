// Command pixelset-server serves the dataset store the pixelset editor
// synchronises against.
//
//	pixelset-server [flags]
//	pixelset-server migrate <command> [--db-path path]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/pixelset/internal/api"
	"github.com/banshee-data/pixelset/internal/config"
	"github.com/banshee-data/pixelset/internal/db"
	"github.com/banshee-data/pixelset/internal/monitoring"
	"github.com/banshee-data/pixelset/internal/version"
)

type options struct {
	configPath   string
	listen       string
	dbPath       string
	insecureCSRF bool
	debug        bool
	showVersion  bool
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var o options
	fs.StringVar(&o.configPath, "config", "", "Path to a .json or .yaml config file")
	fs.StringVar(&o.listen, "listen", "", "Listen address (default :8000)")
	fs.StringVar(&o.dbPath, "db-path", "", "Path to the sqlite database (default pixelset.db)")
	fs.BoolVar(&o.insecureCSRF, "insecure-csrf", false, "Disable the CSRF check for scripted clients")
	fs.BoolVar(&o.debug, "debug", false, "Human-readable debug logging")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	return o, fs.Parse(args)
}

// resolve merges the config file under the command-line flags.
func (o options) resolve() (*config.Config, error) {
	cfg := &config.Config{}
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.listen != "" {
		cfg.Listen = &o.listen
	}
	if o.dbPath != "" {
		cfg.DBPath = &o.dbPath
	}
	if o.insecureCSRF {
		cfg.InsecureCSRF = &o.insecureCSRF
	}
	return cfg, nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stdin); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Printf("pixelset-server: %v", err)
		if errors.Is(err, db.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer, stdin io.Reader) error {
	if len(args) > 0 && args[0] == "migrate" {
		return runMigrate(args[1:], stdout, stdin)
	}

	o, err := parseFlags(flag.NewFlagSet("pixelset-server", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	if o.showVersion {
		fmt.Fprintf(stdout, "pixelset-server %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return nil
	}
	cfg, err := o.resolve()
	if err != nil {
		return err
	}

	logger, err := monitoring.NewLogger(o.debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	restore := monitoring.Install(logger)
	defer restore()

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	handler, err := newHandler(database, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg.GetListen(), handler)
}

// newHandler mounts the API, the admin routes and the dataset charts.
func newHandler(database *db.DB, cfg *config.Config) (http.Handler, error) {
	server := api.NewServer(database, api.Options{InsecureCSRF: cfg.GetInsecureCSRF()})
	mux := server.ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	server.AttachDebugRoutes(mux)
	return api.LoggingMiddleware(mux), nil
}

func serve(ctx context.Context, addr string, h http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("listening on %s", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("Graceful shutdown complete")
	return nil
}

func runMigrate(args []string, stdout io.Writer, stdin io.Reader) error {
	fs := flag.NewFlagSet("pixelset-server migrate", flag.ContinueOnError)
	dbPath := fs.String("db-path", "pixelset.db", "Path to the sqlite database")
	// the action comes first so flags may follow it
	var action []string
	for len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		action = append(action, args[0])
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(append(action, fs.Args()...), *dbPath, stdout, stdin)
}
