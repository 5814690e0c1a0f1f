package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devnet-labs/devnet/supervisor"
	"github.com/devnet-labs/devnet/tail"
)

// runStart spawns the supervisor daemon in the foreground, forwards SIGINT
// and SIGTERM to it and, unless quiet, tails the devnet's logs until it exits.
func runStart(ctx context.Context, quiet bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := supervisor.Spawn(context.Background(), flagData, logger)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		if err := proc.Process.Signal(syscall.SIGTERM); err != nil {
			logger.Warn("terminating supervisord", zap.Error(err))
		}
	}()

	var tailDone chan struct{}
	var stopTail context.CancelFunc
	if !quiet {
		var tailCtx context.Context
		tailCtx, stopTail = context.WithCancel(context.Background())
		defer stopTail()
		tailDone = make(chan struct{})
		tailer := tail.New(flagData, os.Stdout, logger)
		go func() {
			defer close(tailDone)
			if err := tailer.Run(tailCtx); err != nil {
				logger.Warn("log tailer stopped", zap.Error(err))
			}
		}()
	}

	waitErr := proc.Wait()
	if !quiet {
		stopTail()
		<-tailDone
	}

	// a signal-driven shutdown is a clean exit
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) && ctx.Err() != nil {
		return nil
	}
	return waitErr
}

func newStartCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start the prepared devnet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStart(cmd.Context(), quiet)
		},
	}
	cmd.Flags().BoolVar(&quiet, "quiet", false, "don't tail subprocess logs")
	return cmd
}

func newServeCmd() *cobra.Command {
	flags := &initFlags{}
	var quiet bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "prepare and start a devnet from scratch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.run(cmd); err != nil {
				return err
			}
			return runStart(cmd.Context(), quiet)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&quiet, "quiet", false, "don't tail subprocess logs")
	return cmd
}
