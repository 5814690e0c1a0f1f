package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/devnet-labs/devnet/chaincmd"
	"github.com/devnet-labs/devnet/config"
	"github.com/devnet-labs/devnet/internal/tomldoc"
	"github.com/devnet-labs/devnet/ports"
	"github.com/devnet-labs/devnet/supervisor"
)

// DefaultChainBinary is invoked when neither the config nor the caller names
// a chain binary.
const DefaultChainBinary = "chain-maind"

// Devnet bootstraps one chain's node directories under <data_root>/<chain_id>.
type Devnet struct {
	dataDir string
	chain   *config.Chain
	cmd     *chaincmd.Command
	caps    chaincmd.Capabilities
	opts    DevnetOptions
	logger  *zap.Logger
	nodes   []*NodeDirectory
}

// DevnetOptions tune per-chain bootstrap behavior.
type DevnetOptions struct {
	// Cmd overrides the chain binary for every chain when non-empty.
	Cmd string
	// GenCompose additionally writes a docker-compose.yml per chain.
	GenCompose bool
	// Image is the container image recorded in generated compose files.
	Image string
}

func NewDevnet(dataDir string, chain *config.Chain, opts DevnetOptions, logger *zap.Logger) *Devnet {
	bin := opts.Cmd
	if bin == "" {
		bin = chain.Cmd
	}
	if bin == "" {
		bin = DefaultChainBinary
	}
	return &Devnet{
		dataDir: dataDir,
		chain:   chain,
		cmd:     chaincmd.NewCommand(bin, logger),
		opts:    opts,
		logger:  logger.With(zap.String("chain_id", chain.ChainID)),
	}
}

func (d *Devnet) cli(i int) *chaincmd.CLI {
	val := d.chain.Validators[i]
	rpc := fmt.Sprintf("tcp://127.0.0.1:%d", ports.RPC(val.BasePort))
	return chaincmd.NewCLI(d.cmd, d.nodes[i].Home, d.chain.ChainID, rpc, d.caps, d.logger)
}

func (d *Devnet) sharedGenesisPath() string { return filepath.Join(d.dataDir, "genesis.json") }

// Init bootstraps the chain: node homes, genesis assembly, peer topology,
// config rewrite and the supervision task file. The pipeline is strictly
// sequential; every step trusts the on-disk state left by the previous one
// and a failure aborts with no partial-state recovery.
func (d *Devnet) Init(ctx context.Context, basePort int) error {
	d.chain.ApplyDefaults(basePort)
	if err := d.writeConfigSnapshot(); err != nil {
		return err
	}

	d.caps = chaincmd.ProbeCapabilities(ctx, d.cmd)
	d.logger.Debug("probed chain binary",
		zap.String("cmd", d.cmd.Bin()),
		zap.Bool("genesis_grouping", d.caps.GenesisGrouping),
		zap.Bool("icaauth", d.caps.ICAAuth))

	for i, val := range d.chain.Validators {
		d.nodes = append(d.nodes, NewNodeDirectory(d.dataDir, i, val))
	}

	if err := d.initNodes(ctx); err != nil {
		return err
	}
	if err := d.seedSharedGenesis(); err != nil {
		return err
	}
	if err := d.linkNodes(); err != nil {
		return err
	}

	if err := d.assembleGenesis(ctx); err != nil {
		return err
	}
	if err := d.writeTopology(ctx); err != nil {
		return err
	}
	if err := d.validateGenesis(ctx); err != nil {
		return err
	}

	startFlags := strings.TrimSpace(strings.TrimSpace(d.chain.StartFlags) + " " + strings.TrimSpace(d.chain.CmdFlags))
	plan := supervisor.ChainPlan(d.chain.ChainID, d.cmd.Bin(), len(d.nodes), startFlags)
	if err := supervisor.WritePlan(filepath.Join(d.dataDir, supervisor.TasksFile), plan); err != nil {
		return err
	}

	if d.opts.GenCompose {
		if err := WriteComposeFile(d.dataDir, d.cmd.Bin(), d.opts.Image, len(d.nodes)); err != nil {
			return err
		}
	}
	d.logger.Info("devnet initialized", zap.Int("nodes", len(d.nodes)))
	return nil
}

// writeConfigSnapshot persists the resolved chain config. This is the single
// authoritative writer of config.json; node addition rewrites it through the
// same path.
func (d *Devnet) writeConfigSnapshot() error {
	return WriteConfigSnapshot(d.dataDir, d.chain)
}

func WriteConfigSnapshot(dataDir string, chain *config.Chain) error {
	raw, err := json.Marshal(chain)
	if err != nil {
		return fmt.Errorf("encoding config snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "config.json"), raw, 0o644); err != nil {
		return fmt.Errorf("writing config snapshot: %w", err)
	}
	return nil
}

// ReadConfigSnapshot loads the persisted chain config from a data directory.
func ReadConfigSnapshot(dataDir string) (*config.Chain, error) {
	raw, err := os.ReadFile(filepath.Join(dataDir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("reading config snapshot: %w", err)
	}
	var chain config.Chain
	if err := json.Unmarshal(raw, &chain); err != nil {
		return nil, fmt.Errorf("decoding config snapshot: %w", err)
	}
	return &chain, nil
}

func (d *Devnet) initNodes(ctx context.Context) error {
	for i, node := range d.nodes {
		cli := d.cli(i)
		if err := cli.Init(ctx, node.Spec.Moniker, d.chain.CmdFlags); err != nil {
			return fmt.Errorf("initializing node%d: %w", i, err)
		}
		if node.Spec.ConsensusKey != nil {
			if err := node.RestoreConsensusKey(node.Spec.ConsensusKey); err != nil {
				return fmt.Errorf("node%d: %w", i, err)
			}
		}
	}
	return nil
}

// seedSharedGenesis establishes the chain-level genesis: an externally
// supplied file when configured, otherwise node0's generated genesis.
func (d *Devnet) seedSharedGenesis() error {
	var raw []byte
	var err error
	if d.chain.GenesisFile != "" {
		path := strings.ReplaceAll(d.chain.GenesisFile, "%(here)s", filepath.Dir(d.chain.Path))
		raw, err = os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading external genesis: %w", err)
		}
	} else {
		raw, err = os.ReadFile(d.nodes[0].GenesisPath())
		if err != nil {
			return fmt.Errorf("reading generated genesis: %w", err)
		}
	}
	if err := os.WriteFile(d.sharedGenesisPath(), raw, 0o644); err != nil {
		return fmt.Errorf("writing shared genesis: %w", err)
	}
	if err := os.Mkdir(filepath.Join(d.dataDir, "gentx"), 0o755); err != nil {
		return fmt.Errorf("creating gentx dir: %w", err)
	}
	return nil
}

func (d *Devnet) linkNodes() error {
	for i, node := range d.nodes {
		if err := node.LinkGenesis(); err != nil {
			return fmt.Errorf("node%d: %w", i, err)
		}
		if err := WriteClientConfig(node.ClientTOMLPath(), d.chain.ChainID, node.Spec, ""); err != nil {
			return fmt.Errorf("node%d client config: %w", i, err)
		}
	}
	return nil
}

// writeTopology computes the peer set, strips each node's own address and
// rewrites every node's network and app config onto its derived ports.
func (d *Devnet) writeTopology(ctx context.Context) error {
	peers := d.chain.Peers
	if peers == "" {
		var err error
		peers, err = BuildPeers(d.nodes)
		if err != nil {
			return err
		}
	}
	for i, node := range d.nodes {
		id, err := node.NodeID()
		if err != nil {
			// the binary remains the authority when the key file shape is unknown
			id, err = d.cli(i).NodeID(ctx)
			if err != nil {
				return fmt.Errorf("node%d identity: %w", i, err)
			}
		}
		self := PeerAddress(id, node.Spec.Hostname, node.Spec.BasePort)
		cfg := tomldoc.Merge(d.chain.Config, node.Spec.Config)
		if err := RewriteNetworkConfig(node.ConfigTOMLPath(), node.Spec.BasePort, ExcludeSelf(peers, self), cfg, nil); err != nil {
			return fmt.Errorf("node%d network config: %w", i, err)
		}
		appCfg := tomldoc.Merge(d.chain.AppConfig, node.Spec.AppConfig)
		if err := RewriteAppConfig(node.AppTOMLPath(), node.Spec.BasePort, appCfg); err != nil {
			return fmt.Errorf("node%d app config: %w", i, err)
		}
	}
	return nil
}

// validateGenesis runs the binary's genesis validation unless node0 is set up
// for statesync bootstrap, where local state may be incompatible with the
// current binary.
func (d *Devnet) validateGenesis(ctx context.Context) error {
	doc, err := tomldoc.LoadTOML(d.nodes[0].ConfigTOMLPath())
	if err != nil {
		return fmt.Errorf("loading node0 config: %w", err)
	}
	if sync, ok := doc["statesync"].(map[string]any); ok {
		if enabled, _ := sync["enable"].(bool); enabled {
			d.logger.Debug("statesync enabled, skipping genesis validation")
			return nil
		}
	}
	if err := d.cli(0).ValidateGenesis(ctx, d.chain.CmdFlags); err != nil {
		return fmt.Errorf("validating genesis: %w", err)
	}
	return nil
}
