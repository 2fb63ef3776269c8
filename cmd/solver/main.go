// Command solver loads a Solomon instance, runs one search strategy on it and
// prints every solution the strategy emits until it ends, the timeout passes
// or the process is interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vrptw/internal/buildinfo"
	"vrptw/internal/config"
	"vrptw/internal/integrations/solomon"
	"vrptw/internal/logging"
	"vrptw/internal/metrics"
	"vrptw/internal/model"
	"vrptw/internal/opt"
	"vrptw/internal/snapshot"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		instance    = flag.String("instance", "", "path to a Solomon instance file")
		strategy    = flag.String("strategy", "", "search strategy ("+fmt.Sprint(opt.Names)+")")
		timeout     = flag.Duration("timeout", 0, "stop searching after this long (0 uses the config)")
		seed        = flag.Int64("seed", 0, "random seed (0 picks one from the clock)")
		configPath  = flag.String("config", "", "YAML config file")
		out         = flag.String("out", "", "snapshot file prefix; empty disables snapshots")
		metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
		quiet       = flag.Bool("quiet", false, "print only the best solution")
	)
	flag.Parse()
	if *instance == "" && flag.NArg() > 0 {
		*instance = flag.Arg(0)
	}
	if *instance == "" {
		fmt.Fprintln(os.Stderr, "usage: solver -instance <file> [flags]")
		flag.PrintDefaults()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if *strategy != "" {
		cfg.Strategy = *strategy
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *seed != 0 {
		cfg.Solver.Seed = *seed
	}
	if *out != "" {
		cfg.Snapshot.Base = *out
	}

	log, w := logging.New(cfg.Log, "solver")
	if c, ok := w.(io.Closer); ok && w != os.Stderr {
		defer c.Close()
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	inst, err := solomon.File{Path: *instance}.Load(ctx)
	if err != nil {
		log.Error("load instance", "path", *instance, "err", err)
		return 1
	}
	s, err := opt.ByName(cfg.Strategy, cfg.Solver)
	if err != nil {
		log.Error("strategy", "err", err)
		return 2
	}

	if *metricsAddr != "" {
		metrics.RegisterDefault()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", "err", err)
			}
		}()
		defer srv.Close()
	}

	var snaps *snapshot.Writer
	if cfg.Snapshot.Base != "" {
		snaps = snapshot.New(cfg.Snapshot.Base, cfg.Snapshot.Checkpoints, cfg.Snapshot.MinInterval, log)
		go snaps.Run(ctx)
	}

	log.Info("solving", "instance", inst.Name, "customers", len(inst.Customers), "vehicles", inst.Vehicles,
		"capacity", inst.Capacity, "strategy", s.Name(), "timeout", cfg.Timeout, "host", buildinfo.Host())

	st := s.Solve(ctx, inst)
	for sol := range st.C() {
		if !*quiet {
			fmt.Println(sol)
		}
		if snaps != nil {
			if err := snaps.Observe(sol); err != nil {
				log.Error("snapshot", "err", err)
			}
		}
	}
	if snaps != nil {
		if err := snaps.Close(); err != nil {
			log.Error("snapshot", "err", err)
		}
	}
	best := st.Best()
	if *quiet && best != nil {
		fmt.Println(best)
	}

	m := st.Metrics()
	log.Info("search finished", "solutions", m.Emitted, "routes", m.BestRoutes, "distance", m.BestDistance,
		"iterations", m.Iterations, "accepted", m.Accepted, "infeasible", m.Infeasible, "elapsed", m.Elapsed)

	if err := st.Err(); err != nil {
		var ce *model.ContractError
		if errors.As(err, &ce) {
			log.Error("contract violation", "err", err)
			return 3
		}
		log.Error("search failed", "err", err)
		return 1
	}
	if best == nil {
		log.Error("search failed", "err", opt.ErrNoSolution)
		return 1
	}
	return 0
}
