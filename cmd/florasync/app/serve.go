package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/florasync/florasync/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin API server and alert watcher",
	Long: `Start the admin API server. The server exposes provider state
(stats, health, circuit, checkpoint), manual run triggers, and the
alert history. The alert watcher polls circuit and health state in the
background for the lifetime of the process.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 30 * time.Second
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("metrics", false, "Enable metrics collection and the /metrics scrape endpoint")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		panic(fmt.Sprintf("failed to bind address flag: %v", err))
	}
	if err := viper.BindPFlag("metrics", serveCmd.Flags().Lookup("metrics")); err != nil {
		panic(fmt.Sprintf("failed to bind metrics flag: %v", err))
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	var serverOpts []api.ServerOption
	if c.metricsHandler != nil {
		serverOpts = append(serverOpts,
			api.WithSyncMetrics(c.syncMetrics),
			api.WithProviderMetrics(c.providerMetrics),
			api.WithMetricsHandler(c.metricsHandler))
	}

	server := api.NewServer(c.clients, c.runner, c.checkpoints, c.history, c.log, serverOpts...)

	go c.watcher.Run(ctx)

	address := viper.GetString("address")
	httpServer := &http.Server{
		Addr:         address,
		Handler:      server.Router(),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		c.log.Infow("admin api listening", "address", address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	c.log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
