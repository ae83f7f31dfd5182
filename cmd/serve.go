package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"burstq/internal/config"
	"burstq/internal/logging"
	"burstq/internal/metrics"
	"burstq/internal/runner"
	"burstq/internal/server"
	"burstq/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the load test HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
			c.Listen = addr
		}
		return serve(cmd.Context(), c, log)
	},
}

func init() {
	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from listen)")
}

func serve(ctx context.Context, c config.Config, log *zap.Logger) error {
	store, err := storage.OpenBolt(c.Storage.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	collector := metrics.NewCollector()
	ctrl := runner.NewController(runner.Options{
		Observers: []runner.Observer{logging.NewRunObserver(log), collector},
		Archivers: []runner.Archiver{store, storage.NewFileLog(c.Storage.LogDir)},
		Logger:    log,
	})

	current := config.NewLive(c)
	if viper.ConfigFileUsed() != "" {
		config.Watch(viper.GetViper(), current, func(e fsnotify.Event, err error) {
			if err != nil {
				log.Warn("config reload failed", zap.String("file", e.Name), zap.Error(err))
				return
			}
			log.Info("config reloaded", zap.String("file", e.Name))
		})
	}

	srv := server.New(server.Options{
		Controller: ctrl,
		Archive:    store,
		Defaults:   func() config.Defaults { return current.Get().Defaults },
		Metrics:    collector.Handler(),
		Logger:     log,
	})
	httpSrv := &http.Server{
		Addr:              c.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", c.Listen))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		if werr := ctrl.Wait(sctx); werr != nil {
			log.Warn("run still in progress at shutdown", zap.Error(werr))
		}
		return err
	})
	return g.Wait()
}
