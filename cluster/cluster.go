package cluster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/devnet-labs/devnet/config"
	"github.com/devnet-labs/devnet/relayer"
	"github.com/devnet-labs/devnet/supervisor"
)

// InitOptions tune the whole-cluster bootstrap.
type InitOptions struct {
	// BasePort seeds the per-validator port derivation (validator i gets
	// BasePort + i*stride unless pinned in config).
	BasePort int
	// RelayerKind selects the relayer ecosystem for multi-chain clusters.
	RelayerKind relayer.Kind
	// Relayer, when non-nil, overrides the implementation picked by
	// RelayerKind.
	Relayer relayer.Relayer

	DevnetOptions
}

// InitCluster bootstraps every chain of a cluster config under dataRoot,
// writes the umbrella supervision file and, when more than one chain is
// configured, generates relayer configuration and imports the funded relayer
// account per chain. Single-chain clusters produce no relayer artifact.
func InitCluster(ctx context.Context, dataRoot string, cl *config.Cluster, opts InitOptions, logger *zap.Logger) error {
	if opts.RelayerKind == "" {
		opts.RelayerKind = relayer.KindHermes
	}

	for _, chain := range cl.Chains {
		dataDir := filepath.Join(dataRoot, chain.ChainID)
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dataDir, err)
		}
		devnet := NewDevnet(dataDir, chain, opts.DevnetOptions, logger)
		if err := devnet.Init(ctx, opts.BasePort); err != nil {
			return fmt.Errorf("chain %s: %w", chain.ChainID, err)
		}
	}

	multiChain := len(cl.Chains) > 1
	rly := opts.Relayer
	if multiChain && rly == nil {
		var err error
		rly, err = relayer.New(opts.RelayerKind, logger)
		if err != nil {
			return err
		}
	}

	chainIDs := make([]string, 0, len(cl.Chains))
	for _, chain := range cl.Chains {
		chainIDs = append(chainIDs, chain.ChainID)
	}
	relayerCmd := ""
	if multiChain {
		relayerCmd = rly.ProcessCommand(cl.Chains)
	}
	groupPath := filepath.Join(dataRoot, supervisor.TasksFile)
	if err := supervisor.WriteGroupFile(groupPath, chainIDs, relayerCmd); err != nil {
		return err
	}

	if multiChain {
		if err := relayer.Wire(ctx, rly, dataRoot, cl.Chains, cl.Relayer, logger); err != nil {
			return err
		}
	}
	logger.Info("cluster initialized", zap.Strings("chains", chainIDs))
	return nil
}
