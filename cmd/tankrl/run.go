package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/milk9111/tankrl/api"
	"github.com/milk9111/tankrl/arena"
	"github.com/milk9111/tankrl/policy"
	"github.com/milk9111/tankrl/prefabs"
	"github.com/milk9111/tankrl/store"
	"github.com/milk9111/tankrl/trainer"
	"github.com/spf13/cobra"
)

type runOptions struct {
	policy        string
	episodes      int
	dt            float64
	db            string
	http          string
	watch         bool
	seed          int64
	remoteTimeout time.Duration
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run headless episodes with a scripted or remote policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("seed") {
				opts.seed = -1
			}
			return runTraining(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.policy, "policy", envOr("TANKRL_POLICY", "heuristic"), "script name in prefabs/scripts, or \"remote\"")
	f.IntVar(&opts.episodes, "episodes", 100, "stop after this many episodes (0 runs until interrupted)")
	f.Float64Var(&opts.dt, "dt", trainer.DefaultDT, "tick length in seconds")
	f.StringVar(&opts.db, "db", envOr("TANKRL_DB", "tankrl.db"), "SQLite episode store (empty disables)")
	f.StringVar(&opts.http, "http", envOr("TANKRL_HTTP", ""), "address for the stats API and remote policy socket")
	f.BoolVar(&opts.watch, "watch", false, "reload prefabs/arena.yaml on change")
	f.Int64Var(&opts.seed, "seed", 0, "override the arena spawn seed")
	f.DurationVar(&opts.remoteTimeout, "remote-timeout", 5*time.Second, "per-tick wait for the remote policy")
	return cmd
}

func runTraining(parent context.Context, opts *runOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	cfg, err := prefabs.LoadEnvConfig()
	if err != nil {
		return err
	}
	spec, err := prefabs.LoadArenaSpec()
	if err != nil {
		return err
	}
	if opts.seed >= 0 {
		spec.Seed = opts.seed
	}

	a, err := arena.New(spec, cfg.Spawn)
	if err != nil {
		return err
	}

	var (
		p      policy.Policy
		remote *policy.Remote
	)
	if opts.policy == "remote" {
		if opts.http == "" {
			return errors.New("remote policy needs --http")
		}
		remote = policy.NewRemote(opts.remoteTimeout, nil)
		defer remote.Close()
		p = remote
	} else {
		script, err := policy.LoadScript(opts.policy, 1)
		if err != nil {
			return err
		}
		p = script
	}

	runnerOpts := []trainer.Option{
		trainer.WithDT(opts.dt),
		trainer.WithMaxEpisodes(opts.episodes),
	}

	var st *store.Store
	if opts.db != "" {
		st, err = store.Open(opts.db, nil)
		if err != nil {
			return err
		}
		defer st.Close()
		runnerOpts = append(runnerOpts, trainer.WithObserver(st))
		log.Printf("tankrl: recording episodes to %s (run %s)", opts.db, st.Run())
	}

	runner, err := trainer.NewRunner(cfg, a, p, runnerOpts...)
	if err != nil {
		return err
	}

	if opts.http != "" {
		apiOpts := []api.Option{api.WithLive(runner)}
		if st != nil {
			apiOpts = append(apiOpts, api.WithEpisodes(st))
		}
		if remote != nil {
			apiOpts = append(apiOpts, api.WithMount("/policy", remote))
		}
		srv := api.NewServer(apiOpts...)
		go func() {
			if err := srv.ListenAndServe(ctx, opts.http); err != nil {
				log.Printf("tankrl: http: %v", err)
			}
		}()
	}

	if remote != nil {
		log.Printf("tankrl: waiting for a policy client on ws://%s/policy", opts.http)
		if err := remote.WaitForClient(ctx); err != nil {
			return err
		}
	}

	if opts.watch {
		w, err := prefabs.NewWatcher(prefabs.Dir())
		if err != nil {
			return fmt.Errorf("watch %s: %w", prefabs.Dir(), err)
		}
		defer w.Close()
		go reloadArena(w, runner)
	}

	err = runner.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	stats := runner.Env().Stats()
	log.Printf("tankrl: episodes=%d successes=%d success_rate=%.3f avg_time_to_target=%.2fs",
		stats.TotalEpisodes, stats.SuccessfulEpisodes, stats.SuccessRate(), stats.AverageTimeToTarget())
	return err
}

func reloadArena(w *prefabs.Watcher, runner *trainer.Runner) {
	for {
		select {
		case name, ok := <-w.Events:
			if !ok {
				return
			}
			if !prefabs.IsFile(name, prefabs.ArenaFile) {
				continue
			}
			spec, err := prefabs.LoadArenaSpec()
			if err != nil {
				log.Printf("tankrl: reload %s: %v", name, err)
				continue
			}
			runner.ApplySpec(spec)
			log.Printf("tankrl: reloaded %s", name)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("tankrl: watch: %v", err)
		}
	}
}
