package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ringstat/internal"
	"ringstat/internal/config"
	"ringstat/internal/container"
	"ringstat/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "ringstat",
		Short:         "Ring topology detection in multichannel activity recordings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("listen", "", "Serve progress events and metrics on this address (overrides LISTEN_ADDR)")

	rootCmd.AddCommand(
		newDiagramCmd(),
		newCoordsCmd(),
		newSweepCellsCmd(),
		newSweepCellsTwoCmd(),
		newSweepTimesCmd(),
		newSweepPlanCmd(),
		newSynthCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if errors.IsFatalInput(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// runtimeOptions are flags that adjust the environment configuration
type runtimeOptions struct {
	workers int
}

func (o *runtimeOptions) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.workers, "workers", 0, "Concurrent trials (overrides TRIAL_WORKERS)")
}

// setup loads configuration, applies flag overrides and builds the container.
// The returned cleanup stops the server and closes the database.
func setup(cmd *cobra.Command, opts runtimeOptions) (*container.Container, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	internal.DefaultLogger = internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))

	if opts.workers > 0 {
		cfg.Trials.Workers = opts.workers
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.ListenAddr = listen
	}

	c, err := container.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := c.InitDatabase(cmd.Context()); err != nil {
		c.Shutdown(context.Background())
		return nil, nil, err
	}
	c.StartServer(cfg.Server.ListenAddr)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Shutdown(ctx); err != nil {
			internal.DefaultLogger.Warn("Shutdown: %v", err)
		}
	}
	return c, cleanup, nil
}

// resolveSeed keeps an explicit seed and otherwise derives one from the clock
func resolveSeed(flagSeed int64, cfg config.TrialConfig) int64 {
	seed := flagSeed
	if seed == 0 {
		seed = cfg.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
		internal.DefaultLogger.Info("Using time-derived seed %d", seed)
	}
	return seed
}

// orDefault returns v when positive, otherwise def
func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
