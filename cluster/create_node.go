package cluster

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/devnet-labs/devnet/chaincmd"
	"github.com/devnet-labs/devnet/config"
	"github.com/devnet-labs/devnet/internal/tomldoc"
	"github.com/devnet-labs/devnet/ports"
	"github.com/devnet-labs/devnet/supervisor"
)

// Handle accesses one chain of an already-bootstrapped data directory.
type Handle struct {
	dataRoot string
	dataDir  string
	chain    *config.Chain
	cmd      *chaincmd.Command
	caps     chaincmd.Capabilities
	ctl      supervisor.Controller
	logger   *zap.Logger
}

// Open loads a chain's persisted snapshot from dataRoot and probes the chain
// binary once.
func Open(ctx context.Context, dataRoot, chainID string, logger *zap.Logger) (*Handle, error) {
	dataDir := filepath.Join(dataRoot, chainID)
	chain, err := ReadConfigSnapshot(dataDir)
	if err != nil {
		return nil, err
	}
	chain.ChainID = chainID
	bin := chain.Cmd
	if bin == "" {
		bin = DefaultChainBinary
	}
	cmd := chaincmd.NewCommand(bin, logger)
	return &Handle{
		dataRoot: dataRoot,
		dataDir:  dataDir,
		chain:    chain,
		cmd:      cmd,
		caps:     chaincmd.ProbeCapabilities(ctx, cmd),
		ctl:      supervisor.NewCtlClient(dataRoot, logger),
		logger:   logger.With(zap.String("chain_id", chainID)),
	}, nil
}

// SetController replaces the supervisor control client, used by tests.
func (h *Handle) SetController(ctl supervisor.Controller) { h.ctl = ctl }

func (h *Handle) Chain() *config.Chain { return h.chain }

func (h *Handle) NodesLen() int { return len(h.chain.Validators) }

func (h *Handle) node(i int) *NodeDirectory {
	return NewNodeDirectory(h.dataDir, i, h.chain.Validators[i])
}

func (h *Handle) cli(i int) *chaincmd.CLI {
	return chaincmd.NewCLI(h.cmd, HomeDir(h.dataDir, i), h.chain.ChainID, h.NodeRPC(i), h.caps, h.logger)
}

// NodeRPC is the i-th node's RPC endpoint.
func (h *Handle) NodeRPC(i int) string {
	return fmt.Sprintf("tcp://127.0.0.1:%d", ports.RPC(h.chain.Validators[i].BasePort))
}

// GRPCAddr is the i-th node's gRPC query endpoint.
func (h *Handle) GRPCAddr(i int) string {
	return fmt.Sprintf("127.0.0.1:%d", ports.GRPC(h.chain.Validators[i].BasePort))
}

// CreateNodeOptions tune incremental node addition. Zero values derive
// position-based defaults.
type CreateNodeOptions struct {
	BasePort int
	Moniker  string
	Hostname string
	Mnemonic string
	// StateSync configures the new node to bootstrap from snapshots served
	// by the first two nodes instead of replaying from genesis.
	StateSync     bool
	BroadcastMode string
}

// CreateNode appends one node to the running chain: node index is always the
// current node count, the base port defaults to node0's base plus the index
// stride, and exactly one process definition is appended to the supervision
// config (not auto-started). The caller starts it through the supervisor.
func (h *Handle) CreateNode(ctx context.Context, opts CreateNodeOptions) (int, error) {
	i := h.NodesLen()

	if opts.BasePort == 0 {
		opts.BasePort = h.chain.Validators[0].BasePort + i*ports.PortStride
	}
	if opts.Moniker == "" {
		opts.Moniker = fmt.Sprintf("node%d", i)
	}
	if opts.Hostname == "" {
		opts.Hostname = config.DefaultHostname
	}

	spec := &config.Validator{
		Moniker:  opts.Moniker,
		BasePort: opts.BasePort,
		Hostname: opts.Hostname,
		Mnemonic: opts.Mnemonic,
	}
	h.chain.Validators = append(h.chain.Validators, spec)
	if err := WriteConfigSnapshot(h.dataDir, h.chain); err != nil {
		return 0, err
	}

	node := h.node(i)
	if err := h.cli(i).Init(ctx, opts.Moniker, h.chain.CmdFlags); err != nil {
		return 0, fmt.Errorf("initializing node%d: %w", i, err)
	}
	if err := node.LinkSharedGenesis(); err != nil {
		return 0, fmt.Errorf("node%d: %w", i, err)
	}
	if err := WriteClientConfig(node.ClientTOMLPath(), h.chain.ChainID, spec, opts.BroadcastMode); err != nil {
		return 0, fmt.Errorf("node%d client config: %w", i, err)
	}

	peers, err := h.node0Peers()
	if err != nil {
		return 0, err
	}

	var customEdit func(tomldoc.Doc)
	if opts.StateSync {
		section, err := h.statesyncSection(ctx)
		if err != nil {
			return 0, err
		}
		customEdit = func(doc tomldoc.Doc) {
			sync, ok := doc["statesync"].(map[string]any)
			if !ok {
				sync = tomldoc.Doc{}
				doc["statesync"] = sync
			}
			for k, v := range section {
				sync[k] = v
			}
		}
	}

	if err := RewriteNetworkConfig(node.ConfigTOMLPath(), opts.BasePort, peers, nil, customEdit); err != nil {
		return 0, fmt.Errorf("node%d network config: %w", i, err)
	}
	if err := RewriteAppConfig(node.AppTOMLPath(), opts.BasePort, nil); err != nil {
		return 0, fmt.Errorf("node%d app config: %w", i, err)
	}

	if _, err := h.cli(i).CreateAccount(ctx, "validator", opts.Mnemonic); err != nil {
		return 0, fmt.Errorf("node%d validator key: %w", i, err)
	}

	process := supervisor.NodeProcess(h.chain.ChainID, h.cmd.Bin(), i, "")
	process.AutoStart = false
	if err := supervisor.AppendProcess(filepath.Join(h.dataDir, supervisor.TasksFile), process); err != nil {
		return 0, err
	}
	if err := h.ctl.Reload(ctx); err != nil {
		return 0, err
	}
	h.logger.Info("node added", zap.Int("index", i), zap.Int("base_port", opts.BasePort))
	return i, nil
}

// node0Peers reads the already-computed peer list from node0's network
// config, accepting either key spelling.
func (h *Handle) node0Peers() (string, error) {
	doc, err := tomldoc.LoadTOML(h.node(0).ConfigTOMLPath())
	if err != nil {
		return "", fmt.Errorf("loading node0 config: %w", err)
	}
	p2p, ok := doc["p2p"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("node0 config has no p2p section")
	}
	if peers, ok := p2p["persistent_peers"].(string); ok {
		return peers, nil
	}
	peers, _ := p2p["persistent-peers"].(string)
	return peers, nil
}

// statesyncSection snapshots node0's sync state into statesync settings for
// the joining node.
func (h *Handle) statesyncSection(ctx context.Context) (tomldoc.Doc, error) {
	status, err := h.cli(0).Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying node0 status: %w", err)
	}
	info, err := chaincmd.SyncInfo(status)
	if err != nil {
		return nil, err
	}
	rawHeight, _ := info["latest_block_height"].(string)
	height, err := strconv.ParseInt(rawHeight, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing latest block height %q: %w", rawHeight, err)
	}
	hash, _ := info["latest_block_hash"].(string)

	servers := []string{h.NodeRPC(0)}
	if h.NodesLen() > 1 {
		servers = append(servers, h.NodeRPC(1))
	}
	return tomldoc.Doc{
		"enable":         true,
		"rpc_servers":    strings.Join(servers, ","),
		"trust_height":   height,
		"trust_hash":     hash,
		"temp_dir":       h.dataDir,
		"discovery_time": "5s",
	}, nil
}
