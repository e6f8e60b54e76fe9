package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeusync/smoke/internal/config"
	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/engine"
	"github.com/zeusync/smoke/internal/injector"
)

var (
	flagFrames   uint64
	flagTickRate int
	flagWorkers  int
	flagInspect  bool
	flagAddr     string
)

var runCmd = &cobra.Command{
	Use:   "run <world.yaml>",
	Short: "Load a world and run it",
	Long: `Load a world file and drive frames until interrupted or until the
frame limit is reached. Flags override the config file.

With --inspect a websocket feed of frame reports is served on /frames.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Uint64Var(&flagFrames, "frames", 0, "Stop after this many frames (0 = run until interrupted)")
	runCmd.Flags().IntVar(&flagTickRate, "tick-rate", -1, "Frames per second (0 = as fast as possible)")
	runCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Worker pool size")
	runCmd.Flags().BoolVar(&flagInspect, "inspect", false, "Serve the live inspector feed")
	runCmd.Flags().StringVar(&flagAddr, "inspect-addr", "", "Inspector listen address")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("frames") {
		cfg.Engine.MaxFrames = flagFrames
	}
	if flagTickRate >= 0 {
		cfg.Engine.TickRate = flagTickRate
	}
	if flagWorkers > 0 {
		cfg.Engine.Workers = flagWorkers
	}
	if flagInspect {
		cfg.Inspect.Enabled = true
	}
	if flagAddr != "" {
		cfg.Inspect.Addr = flagAddr
	}
	return cfg, cfg.Validate()
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	world, err := engine.LoadWorld(args[0])
	if err != nil {
		return err
	}

	app, cleanup, err := injector.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()

	if err := app.Engine.Load(world); err != nil {
		return err
	}

	if app.Inspector != nil {
		if err := app.Inspector.Start(); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := app.Inspector.Stop(ctx); err != nil {
				app.Log.Warn("inspector stop", log.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Engine.Run(ctx); err != nil {
		return err
	}
	st := app.Engine.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "ran %d frames, %d change posts, %d deliveries\n",
		st.Frames, st.Changes.Posts, st.Changes.Deliveries)
	return nil
}
