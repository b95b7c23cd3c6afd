package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/banshee-data/exoquest/internal/api"
	"github.com/banshee-data/exoquest/internal/config"
	"github.com/banshee-data/exoquest/internal/db"
	"github.com/banshee-data/exoquest/internal/dispatch"
	"github.com/banshee-data/exoquest/internal/monitoring"
)

const shutdownTimeout = 5 * time.Second

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification API",
		Long: `Load every catalog's artifacts and serve the HTTP API. SIGHUP reloads
the artifacts; SIGINT or SIGTERM shuts the server down gracefully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg)
		},
	}
	cmd.Flags().String("listen", ":8080", "listen address")
	if err := a.v.BindPFlag("listen", cmd.Flags().Lookup("listen")); err != nil {
		panic(err)
	}
	return cmd
}

// newDispatcher loads the configured catalogs.
func newDispatcher(ctx context.Context, cfg *config.Config) (*dispatch.Dispatcher, error) {
	src, err := cfg.ArtifactSource()
	if err != nil {
		return nil, err
	}
	return dispatch.New(ctx, dispatch.Config{
		Source:      src,
		Demo:        cfg.Demo.Enabled,
		DemoOptions: cfg.DemoOptions(),
	})
}

func serve(ctx context.Context, cfg *config.Config) error {
	d, err := newDispatcher(ctx, cfg)
	if err != nil {
		return err
	}
	monitoring.With(logrus.Fields{"catalogs": d.AvailableCatalogs()}).Info("catalogs loaded")

	var database *db.DB
	if cfg.DB.Path != "" {
		database, err = db.NewDB(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer database.Close()
	}

	handler, err := api.NewServer(d, database, api.Options{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}).Handler()
	if err != nil {
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				failures, err := d.Reload(ctx)
				if err != nil {
					monitoring.Logger().WithError(err).Error("reload failed")
					continue
				}
				for id, ferr := range failures {
					monitoring.With(logrus.Fields{"catalog": id}).WithError(ferr).Warn("catalog kept previous artifacts")
				}
				monitoring.Logf("reloaded artifacts")
			case <-ctx.Done():
				return
			}
		}
	}()

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("listening on %s", cfg.Listen)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logger().WithError(err).Warn("HTTP server shutdown")
		return server.Close()
	}
	monitoring.Logf("HTTP server routine stopped")
	return nil
}
