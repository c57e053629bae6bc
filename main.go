package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stevemurr/foogate/config"
	"github.com/stevemurr/foogate/handler"
	"github.com/stevemurr/foogate/logging"
	"github.com/stevemurr/foogate/resolver"
	"github.com/stevemurr/foogate/schema"
	"github.com/stevemurr/foogate/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)
	cmd := &cobra.Command{
		Use:          "foogate",
		Short:        "GraphQL gateway over the foos document collection",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Server.Host = overrides.Server.Host
			}
			if flags.Changed("port") {
				cfg.Server.Port = overrides.Server.Port
			}
			if flags.Changed("backend") {
				cfg.Store.Backend = overrides.Store.Backend
			}
			if flags.Changed("mongo-uri") {
				cfg.Store.URI = overrides.Store.URI
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = overrides.Log.Level
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	f.StringVar(&overrides.Server.Host, "host", "", "listen host")
	f.IntVarP(&overrides.Server.Port, "port", "p", 0, "listen port")
	f.StringVar(&overrides.Store.Backend, "backend", "", "store backend: mongo, sqlite or memory")
	f.StringVar(&overrides.Store.URI, "mongo-uri", "", "MongoDB connection string")
	f.StringVar(&overrides.Log.Level, "log-level", "", "debug, info, warn or error")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	foos, err := store.New(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("failed to open store (backend=%s): %w", cfg.Store.Backend, err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := foos.Close(ctx); err != nil {
			log.Warn("closing store", "error", err)
		}
	}()

	s, err := schema.New()
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	h := handler.New(resolver.New(foos, log), s,
		handler.WithLogger(log),
		handler.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)
	srv := &http.Server{Addr: cfg.Addr(), Handler: h}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("foogate starting", "addr", srv.Addr, "store", cfg.Store.Backend, "collection", cfg.Store.Collection)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
