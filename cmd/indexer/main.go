// Copyright 2025 ChorusOne
// This file is part of the monad-staking-indexer library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

// indexer runs the staking precompile event indexer: it loads
// configuration, wires the ingestion/backfill/writer/metrics tasks and
// blocks until terminated.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ChorusOne/monad-staking-indexer/internal/config"
	"github.com/ChorusOne/monad-staking-indexer/internal/indexer"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

var ConfigFlag = &cli.StringFlag{
	Name:  "config",
	Usage: "path to a TOML configuration file",
	Value: "config.toml",
}

var app = cli.NewApp()

func init() {
	app.Name = "indexer"
	app.Usage = "continuous event indexer for the staking precompile"
	app.Flags = []cli.Flag{ConfigFlag}
	app.Action = run
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	cfg, err := config.Load(cliCtx.String(ConfigFlag.Name))
	if err != nil {
		// Configuration errors are fatal at startup (spec.md §7).
		log.Crit("failed to load configuration", "err", err)
	}
	setupLogger(cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	ix, err := indexer.New(ctx, cfg, reg)
	if err != nil {
		log.Crit("failed to initialize indexer", "err", err)
	}

	metricsSrv := startMetricsServer(cfg.MetricsAddr(), reg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ix.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig)

	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics server shutdown error", "err", err)
	}

	log.Info("indexer stopped cleanly")
	return nil
}

// setupLogger installs the root log handler at the configured level,
// mirroring the teacher's own cmd/evm verbosity wiring
// (log.Root().SetHandler(log.LvlFilterHandler(...))). This is the log15-style
// handler API go-ethereum carried through the v1.13 line (the same one
// client/cmd/evm/staterunner.go and client/cmd/checkpoint-admin/main.go use
// in the pinned v1.13.14 module), predating the slog-based log package
// rewrite on the v1.14 line; go.mod pins v1.13.14, so Root/SetHandler/
// LvlFilterHandler/StreamHandler/TerminalFormat/LvlFromString are all still
// exported here. An invalid level is a Configuration error and is fatal at
// startup (spec.md §7); config.Load already validated it, so any error here
// is a programmer invariant.
func setupLogger(level string) {
	lvl, err := log.LvlFromString(level)
	if err != nil {
		log.Crit("invalid logging.level", "level", level, "err", err)
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat(true))))
}

// startMetricsServer exposes the Prometheus registry the MetricsAggregator
// registers its counters with (spec.md §6 "metrics.bind_address,
// metrics.port"). The aggregator itself never touches HTTP; this is the
// thin out-of-core surface spec.md §1 calls a collaborator.
func startMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server stopped", "err", err)
		}
	}()
	return srv
}
