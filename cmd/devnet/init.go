package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devnet-labs/devnet/cluster"
	"github.com/devnet-labs/devnet/config"
	"github.com/devnet-labs/devnet/relayer"
)

type initFlags struct {
	config     string
	basePort   int
	dotenv     string
	cmd        string
	relayer    string
	genCompose bool
	image      string
	noRemove   bool
}

func (f *initFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.config, "config", "./config.yaml", "cluster config file")
	cmd.Flags().IntVar(&f.basePort, "base-port", 26650, "base port for service port derivation")
	cmd.Flags().StringVar(&f.dotenv, "dotenv", "", "dotenv file overriding the one referenced in config")
	cmd.Flags().StringVar(&f.cmd, "cmd", "", "chain binary, overriding the config")
	cmd.Flags().StringVar(&f.relayer, "relayer", string(relayer.KindHermes), "relayer ecosystem (hermes or rly)")
	cmd.Flags().BoolVar(&f.genCompose, "gen-compose-file", false, "also generate docker-compose.yml per chain")
	cmd.Flags().StringVar(&f.image, "image", "", "container image recorded in generated compose files")
	cmd.Flags().BoolVar(&f.noRemove, "no-remove", false, "keep an existing data directory")
}

func (f *initFlags) run(cmd *cobra.Command) error {
	kind, err := relayer.ParseKind(f.relayer)
	if err != nil {
		return err
	}
	if !f.noRemove {
		if err := os.RemoveAll(flagData); err != nil {
			return fmt.Errorf("removing data dir: %w", err)
		}
	}
	if err := os.MkdirAll(flagData, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	cl, err := config.Load(f.config, f.dotenv)
	if err != nil {
		return err
	}
	opts := cluster.InitOptions{
		BasePort:    f.basePort,
		RelayerKind: kind,
		DevnetOptions: cluster.DevnetOptions{
			Cmd:        f.cmd,
			GenCompose: f.genCompose,
			Image:      f.image,
		},
	}
	return cluster.InitCluster(cmd.Context(), flagData, cl, opts, logger)
}

func newInitCmd() *cobra.Command {
	flags := &initFlags{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "prepare all configurations of a devnet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.run(cmd)
		},
	}
	flags.register(cmd)
	return cmd
}
