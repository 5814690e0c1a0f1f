package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagData    string
	flagVerbose bool

	logger *zap.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "devnet",
		Short:         "bootstrap and run local multi-node blockchain devnets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error
			logger, err = buildLogger(flagVerbose)
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flagData, "data", "./data", "root data directory")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newInitCmd(),
		newStartCmd(),
		newServeCmd(),
		newCreateNodeCmd(),
		newWaitCmd(),
		newVersionCmd(),
	)
	return root
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}
