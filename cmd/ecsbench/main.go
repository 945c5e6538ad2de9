package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/profile"
	"github.com/zeusync/ecscore/internal/config"
	"github.com/zeusync/ecscore/internal/core/observability/log"
	"github.com/zeusync/ecscore/internal/injector"
	"github.com/zeusync/ecscore/internal/stress"
	"github.com/zeusync/ecscore/pkg/concurrent"
	"github.com/zeusync/ecscore/pkg/sequence"
)

type flags struct {
	config   string
	worlds   int
	entities int
	depth    int
	profile  string
	profDir  string
	snapshot string
	seed     uint64
}

func parseFlags() flags {
	defaults := stress.DefaultParams()
	var f flags
	flag.StringVar(&f.config, "config", "", "path to a YAML config file")
	flag.IntVar(&f.worlds, "worlds", 4, "number of independent worlds to run concurrently")
	flag.IntVar(&f.entities, "entities", defaults.Entities, "entities created per world")
	flag.IntVar(&f.depth, "depth", defaults.Depth, "maximum hierarchy depth")
	flag.StringVar(&f.profile, "profile", "", "profile mode: cpu, mem or empty")
	flag.StringVar(&f.profDir, "profile-dir", ".", "directory profiles are written to")
	flag.StringVar(&f.snapshot, "snapshot", "", "write a snapshot of the first world to this path")
	flag.Uint64Var(&f.seed, "seed", defaults.Seed, "random seed of the first world")
	flag.Parse()
	return f
}

func main() {
	os.Exit(execute(parseFlags()))
}

// execute returns the process exit code. Deferred profile writers have run by
// the time it returns, whatever the outcome.
func execute(f flags) int {
	switch f.profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(f.profDir), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath(f.profDir), profile.NoShutdownHook).Stop()
	case "":
	default:
		fmt.Fprintf(os.Stderr, "unknown profile mode %q\n", f.profile)
		return 2
	}

	if err := run(f); err != nil {
		fmt.Fprintln(os.Stderr, "ecsbench:", err)
		return 1
	}
	return 0
}

func run(f flags) error {
	cfg := config.Default()
	if f.config != "" {
		loaded, err := config.LoadFile(f.config)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := injector.ProvideLogger(cfg)
	defer func() { _ = logger.Sync() }()

	params := stress.DefaultParams()
	params.Entities = f.entities
	params.Depth = f.depth

	var (
		mu      sync.Mutex
		results = make([]stress.Result, 0, f.worlds)
	)
	start := time.Now()
	err := concurrent.Concurrent(ctx, sequence.Range(f.worlds), 0, func(ctx context.Context, i int) error {
		rt := injector.InitializeRuntime(cfg)
		ts, err := stress.RegisterTypes(rt.World)
		if err != nil {
			return err
		}

		p := params
		p.Seed = f.seed + uint64(i)
		res, err := stress.Run(ctx, rt.World, ts, p, rt.Logger.Named("stress"))
		if err != nil {
			return errors.Wrapf(err, "world %d", i)
		}

		if i == 0 && f.snapshot != "" {
			if err := writeSnapshot(rt, f.snapshot); err != nil {
				return err
			}
		}

		mu.Lock()
		results = append(results, res)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	total := 0
	for _, r := range results {
		total += r.Created + r.Duplicated
	}
	logger.Info("benchmark finished",
		log.Int("worlds", len(results)),
		log.Int("entities", total),
		log.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func writeSnapshot(rt *injector.Runtime, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create snapshot")
	}
	defer file.Close()
	return rt.Saver.Save(rt.World, file)
}
