// Package cli implements the trailhead command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailhead-app/trailhead/internal/api"
	"github.com/trailhead-app/trailhead/internal/app/engine"
	"github.com/trailhead-app/trailhead/internal/app/harmony"
	"github.com/trailhead-app/trailhead/internal/app/monthly"
	"github.com/trailhead-app/trailhead/internal/daemon"
	"github.com/trailhead-app/trailhead/internal/domain"
	"github.com/trailhead-app/trailhead/internal/infra/memstore"
	"github.com/trailhead-app/trailhead/internal/infra/schedule"
	"github.com/trailhead-app/trailhead/internal/infra/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "trailhead",
	Short: "Trailhead — habit, journal, and goal tracking with an XP economy",
	Long: `Trailhead is a local-first personal tracker. The daemon owns the XP
ledger: every habit check, journal entry, and goal update earns XP through
a single serialized economy engine with anti-spam limits, harmony
multipliers, and monthly challenge rewards.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// ─── serve ──────────────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the trailhead daemon",
	Long:  `Start the local daemon: opens the ledger, wires the XP engine, and serves the HTTP API.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := daemon.EnsureHome(); err != nil {
		return err
	}
	cfg, err := daemon.Load(daemon.ConfigPath())
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	clock := schedule.RealClock{}
	eng := engine.New(store, clock, cfg.EngineConfig(), nil)
	harm := harmony.New(store, store, eng, clock, cfg.HarmonySettings())
	cal := monthly.New(store, eng, clock)

	server := api.NewServer(&api.XPAPI{Engine: eng, Harmony: harm, Monthly: cal})
	server.EnableMetrics()
	server.SetLiveFeed(api.NewLiveFeed(eng.Hub()))

	httpServer := &http.Server{
		Addr:    cfg.API.Addr(),
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] listening on %s", cfg.API.Addr())
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		log.Printf("[daemon] received %s, shutting down", sig)
	}

	eng.FlushPending()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func openStore(cfg daemon.Config) (domain.Store, error) {
	switch cfg.Storage.Backend {
	case "", "sqlite":
		return sqlite.Open(cfg.DatabasePath())
	case "memory":
		log.Printf("[daemon] memory backend selected: ledger will not survive restart")
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, cfg.Storage.Backend)
	}
}
