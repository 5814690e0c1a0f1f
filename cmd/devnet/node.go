package main

import (
	"github.com/spf13/cobra"

	"github.com/devnet-labs/devnet/cluster"
)

func newCreateNodeCmd() *cobra.Command {
	var (
		chainID       string
		opts          cluster.CreateNodeOptions
		broadcastMode string
	)
	cmd := &cobra.Command{
		Use:   "create-node",
		Short: "append one node to a bootstrapped chain",
		Long: "Append one node to a bootstrapped chain. The process definition is\n" +
			"registered with the supervisor but not auto-started; start it with\n" +
			"supervisorctl once ready.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handle, err := cluster.Open(cmd.Context(), flagData, chainID, logger)
			if err != nil {
				return err
			}
			opts.BroadcastMode = broadcastMode
			i, err := handle.CreateNode(cmd.Context(), opts)
			if err != nil {
				return err
			}
			cmd.Printf("node%d\n", i)
			return nil
		},
	}
	cmd.Flags().StringVar(&chainID, "chain-id", "", "chain to grow")
	cmd.Flags().IntVar(&opts.BasePort, "base-port", 0, "base port (default: node0 base + index stride)")
	cmd.Flags().StringVar(&opts.Moniker, "moniker", "", "node moniker (default: node{index})")
	cmd.Flags().StringVar(&opts.Hostname, "hostname", "", "node hostname (default: loopback)")
	cmd.Flags().StringVar(&opts.Mnemonic, "mnemonic", "", "recover the validator key from a mnemonic")
	cmd.Flags().BoolVar(&opts.StateSync, "statesync", false, "bootstrap the node from state-sync snapshots")
	cmd.Flags().StringVar(&broadcastMode, "broadcast-mode", "", "client broadcast mode (default: sync)")
	_ = cmd.MarkFlagRequired("chain-id")
	return cmd
}

func newWaitCmd() *cobra.Command {
	var (
		chainID   string
		node      int
		minHeight int64
	)
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "wait until a node's RPC and gRPC endpoints are ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handle, err := cluster.Open(cmd.Context(), flagData, chainID, logger)
			if err != nil {
				return err
			}
			return handle.WaitForNode(cmd.Context(), node, minHeight)
		},
	}
	cmd.Flags().StringVar(&chainID, "chain-id", "", "chain to query")
	cmd.Flags().IntVar(&node, "node", 0, "node index")
	cmd.Flags().Int64Var(&minHeight, "height", 1, "minimum block height to wait for")
	_ = cmd.MarkFlagRequired("chain-id")
	return cmd
}
