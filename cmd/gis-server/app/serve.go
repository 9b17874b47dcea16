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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/datumgrid/gis-resource-server/internal/api"
	"github.com/datumgrid/gis-resource-server/internal/auth"
	"github.com/datumgrid/gis-resource-server/internal/catalogue"
	"github.com/datumgrid/gis-resource-server/internal/config"
	"github.com/datumgrid/gis-resource-server/internal/introspect"
	"github.com/datumgrid/gis-resource-server/internal/logger"
	"github.com/datumgrid/gis-resource-server/internal/service/inmemory"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GIS resource server",
	Long: `Start the GIS resource server.

The server requires a configuration file (--config) that specifies:
- Token verification settings (audience, issuer, public key)
- Catalogue endpoint for access-policy lookups
- Cache bounds and open endpoints

See examples/ directory for a sample configuration.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 10 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 15 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides config)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		logger.Fatalf("Failed to bind address flag: %v", err)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		logger.Fatalf("Failed to bind config flag: %v", err)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		logger.Fatalf("Failed to mark config flag as required: %v", err)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	address := cfg.Server.Address
	if flagAddress := viper.GetString("address"); flagAddress != "" {
		address = flagAddress
	}
	logger.Infof("Starting GIS resource server on %s", address)

	validator, err := auth.NewValidator(cfg.JWT.PublicKeyFile, cfg.JWT.Audience, cfg.JWT.Issuer)
	if err != nil {
		return fmt.Errorf("failed to create token validator: %w", err)
	}

	catClient := catalogue.NewHTTPClient(catalogue.Config{
		Host:       cfg.Catalogue.Host,
		Port:       cfg.Catalogue.Port,
		SearchPath: cfg.Catalogue.SearchPath,
		TLS:        cfg.Catalogue.TLS,
		Timeout:    cfg.CatalogueTimeout(),
	})
	logger.Infof("Catalogue lookups target %s:%d%s", cfg.Catalogue.Host, cfg.Catalogue.Port, cfg.Catalogue.SearchPath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := introspect.NewMetrics(registry)

	resolver, err := introspect.NewAccessResolver(catClient, cfg.Cache.MaxEntries, cfg.CacheTTL(), metrics)
	if err != nil {
		return fmt.Errorf("failed to create access resolver: %w", err)
	}

	engine := introspect.NewService(validator, resolver, cfg.OpenEndpoints, metrics)

	router := api.NewServer(engine, inmemory.NewDatabase(), inmemory.NewMetering(),
		api.WithMetricsGatherer(registry),
		api.WithMiddlewares(
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
		),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		logger.Infof("Server listening on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logger.Infof("Server shutdown complete")
	return nil
}
