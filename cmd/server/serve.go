package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prasenjit/go-assertive/internal/api"
	"github.com/prasenjit/go-assertive/internal/config"
	"github.com/prasenjit/go-assertive/internal/engine"
	"github.com/prasenjit/go-assertive/internal/history"
	"github.com/prasenjit/go-assertive/internal/response"
	"github.com/prasenjit/go-assertive/internal/stats"
	"github.com/prasenjit/go-assertive/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server",
	Long: `Starts the Assertive mock server.

The server will:
  - Load expectation seed files from expectations.path, if set
  - Expose the admin API under admin.prefix (default /__mock__)
  - Record every other request and answer it from the best matching expectation

Configuration is loaded from config.yaml in the current directory,
or specify a custom config file with the --config flag.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "Override server port")
	serveCmd.Flags().String("host", "", "Override listen host")
	serveCmd.Flags().StringP("expectations", "e", "", "Expectation seed file, directory or glob")
	serveCmd.Flags().Bool("diagnostics", false, "Report closest expectations for unmatched requests")

	// Bind flags to viper; unset flags fall through to file, env and defaults
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("expectations.path", serveCmd.Flags().Lookup("expectations"))
	viper.BindPFlag("unmatched.diagnostics", serveCmd.Flags().Lookup("diagnostics"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	setupLogging(cfg.Logging, os.Stderr)

	store := storage.NewMemoryStore()
	if cfg.Expectations.Path != "" {
		n, err := storage.LoadSeedFiles(store, cfg.Expectations.Path)
		if err != nil {
			return fmt.Errorf("failed to load expectations: %w", err)
		}
		log.Printf("Loaded %d expectation(s) from %s", n, cfg.Expectations.Path)
	}

	historyLog := history.NewLog(cfg.History.MaxRecords)
	statsCollector := stats.NewCollector()
	resolver := response.NewResolver(response.Options{
		FaultsEnabled: cfg.Faults.Enabled,
		MaxDelay:      cfg.Delay.Max,
	})
	dispatcher := engine.NewDispatcher(store, historyLog, resolver, statsCollector, engine.Options{
		UnmatchedStatus: cfg.Unmatched.Status,
		UnmatchedBody:   cfg.Unmatched.Body,
		Diagnostics:     cfg.Unmatched.Diagnostics,
		Closest:         cfg.Unmatched.Closest,
		Debug:           cfg.Debug(),
	})

	mock := engine.NewHandler(dispatcher, cfg.Server.MaxBodyBytes)
	router := api.NewRouter(store, historyLog, statsCollector, dispatcher, mock, cfg.Admin.Prefix)

	// Responses may be delayed up to delay.max; an uncapped delay gets no write timeout
	var writeTimeout time.Duration
	if cfg.Delay.Max > 0 {
		writeTimeout = cfg.Delay.Max + 30*time.Second
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting Assertive server on %s", addr)
		log.Printf("Admin API available at http://%s%s", addr, cfg.Admin.Prefix)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	return nil
}
