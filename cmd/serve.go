package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/gynoid/internal/adapter/slack"
	"github.com/ziadkadry99/gynoid/internal/audit"
	"github.com/ziadkadry99/gynoid/internal/cluster"
	"github.com/ziadkadry99/gynoid/internal/db"
	"github.com/ziadkadry99/gynoid/internal/droid"
	"github.com/ziadkadry99/gynoid/internal/extender"
	"github.com/ziadkadry99/gynoid/internal/extensions/gynoid"
	"github.com/ziadkadry99/gynoid/internal/extensions/sample"
	"github.com/ziadkadry99/gynoid/internal/notifications"
	"github.com/ziadkadry99/gynoid/internal/progress"
	"github.com/ziadkadry99/gynoid/internal/registry"
	"github.com/ziadkadry99/gynoid/internal/server"
)

var (
	servePort    int
	serveCORSAll bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the droid fleet and the admin server",
	Long: `Loads every droid from the registry, makes sure the management droid
is running with its extension, and serves the admin API, the audit trail
and the Slack Events API and interactivity endpoints.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveCORSAll, "cors-all", false, "allow every CORS origin (development only)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Port = servePort
	}
	logger := newLogger(cfg)

	if err := registry.Create(cfg.Registry, nil); err != nil {
		return fmt.Errorf("creating registry: %w", err)
	}
	store, err := registry.Open(cfg.Registry)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.AuditDB), 0o755); err != nil {
		return fmt.Errorf("creating audit directory: %w", err)
	}
	database, err := db.Open(cfg.AuditDB)
	if err != nil {
		return fmt.Errorf("opening audit database: %w", err)
	}
	defer database.Close()
	auditStore := audit.NewStore(database, logger)
	if pruned, err := auditStore.Prune(context.Background(), cfg.AuditRetention); err != nil {
		logger.Error("unable to prune audit trail", "error", err)
	} else if pruned > 0 {
		logger.Info("audit trail pruned", "entries", pruned, "retention_days", cfg.AuditRetention)
	}

	ext := extender.New(extender.Options{
		InstallDir:     cfg.InstallDir,
		Token:          func() string { return store.GlobalKey("GITHUB_TOKEN") },
		InstallCommand: cfg.InstallCommand,
		Builtins: map[string]fs.FS{
			gynoid.Name: gynoid.Files(),
			sample.Name: sample.Files(),
		},
		Logger: logger,
	})

	hub := slack.NewHub(cfg.Slack.SigningSecret, logger)
	newAdapter := slack.NewFactory(slack.Options{
		BaseURL: cfg.Slack.BaseURL,
		Mode:    slack.Mode(cfg.Slack.Mode),
		Hub:     hub,
		Logger:  logger,
	})

	opts := []cluster.Option{
		cluster.WithLogger(logger),
		cluster.WithAuditor(auditStore),
		cluster.WithProgress(progress.NewReporter()),
	}
	var notifier *notifications.Dispatcher
	if len(cfg.Notify.Webhooks) > 0 {
		notifier = notifications.NewDispatcher(cfg.Notify.Webhooks, notifications.ParseSeverity(cfg.Notify.MinSeverity), logger)
		opts = append(opts, cluster.WithAuditor(notifier))
	}

	catalog := droid.NewCatalog()
	sample.Register(catalog)
	fleet := cluster.New(store, ext,
		cluster.NewRuntimeFactory(newAdapter, catalog, cfg.InstallDir, logger),
		opts...,
	)
	gynoid.Register(catalog, fleet)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("loading droids", "registry", store.Path())
	started := fleet.StartFromRegistry(ctx)
	logger.Info("droids loaded", "started", started)

	m := cfg.Management
	if err := fleet.Bootstrap(ctx, m.Droid, m.Token, m.Extension); err != nil {
		logger.Error("unable to bootstrap management droid", "droid", m.Droid, "error", err)
	}

	srv := server.New(server.Config{Host: cfg.Host, Port: cfg.Port, AllowAll: serveCORSAll}, logger)
	srv.Router().Group(func(r chi.Router) {
		r.Use(server.RequireToken(cfg.Admin.Token))
		cluster.RegisterRoutes(r, fleet)
		audit.RegisterRoutes(r, auditStore)
	})
	slack.RegisterRoutes(srv.Router(), hub)
	if cfg.Admin.Token == "" && !isLoopback(cfg.Host) {
		logger.Warn("admin API is reachable without a token; set admin.token", "host", cfg.Host)
	}

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down gynoid...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
	}()

	fmt.Fprintf(os.Stderr, "gynoid %s listening on %s\n", Version, srv.Addr())
	fmt.Fprintf(os.Stderr, "  Registry: %s\n", store.Path())
	fmt.Fprintf(os.Stderr, "  Extensions: %s\n", cfg.InstallDir)
	fmt.Fprintf(os.Stderr, "  Audit: %s\n", database.Path())

	serveErr := srv.Start()
	if err := fleet.Shutdown(context.Background()); err != nil {
		logger.Error("fleet shutdown", "error", err)
	}
	if notifier != nil {
		notifier.Wait()
	}
	return serveErr
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
