package relayer

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/devnet-labs/devnet/chaincmd"
	"github.com/devnet-labs/devnet/config"
	"github.com/devnet-labs/devnet/internal/tomldoc"
	"github.com/devnet-labs/devnet/ports"
)

// Hermes drives the hermes relayer: a single TOML config file at the data
// root and key import through the hermes CLI.
type Hermes struct {
	cmd    *chaincmd.Command
	logger *zap.Logger

	// versionProbe is replaced in tests; default shells out to the binary.
	versionProbe func(ctx context.Context) (string, error)
}

func NewHermes(logger *zap.Logger) *Hermes {
	h := &Hermes{cmd: chaincmd.NewCommand("hermes", logger), logger: logger}
	h.versionProbe = func(ctx context.Context) (string, error) {
		out, err := exec.CommandContext(ctx, "hermes", "--version").Output()
		if err != nil {
			return "", fmt.Errorf("probing hermes version: %w", err)
		}
		return string(out), nil
	}
	return h
}

func (h *Hermes) configPath(dataRoot string) string {
	return filepath.Join(dataRoot, "relayer.toml")
}

// legacyEventConfig reports whether the detected hermes predates 1.6.0, where
// the chain config carried websocket_addr instead of event_source.
func (h *Hermes) legacyEventConfig(ctx context.Context) (bool, error) {
	raw, err := h.versionProbe(ctx)
	if err != nil {
		return false, err
	}
	major, minor, _, err := parseHermesVersion(raw)
	if err != nil {
		return false, err
	}
	return major < 1 || (major == 1 && minor < 6), nil
}

// parseHermesVersion extracts the numeric version from `hermes --version`
// output like "hermes 1.7.4+aarch64".
func parseHermesVersion(raw string) (major, minor, patch int, err error) {
	version := strings.TrimSpace(raw)
	version = strings.TrimPrefix(version, "hermes ")
	version, _, _ = strings.Cut(version, "+")
	parts := strings.Split(version, ".")
	if len(parts) < 3 {
		return 0, 0, 0, fmt.Errorf("unexpected hermes version output %q", raw)
	}
	nums := make([]int, 3)
	for i := 0; i < 3; i++ {
		nums[i], err = strconv.Atoi(parts[i])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("unexpected hermes version output %q: %w", raw, err)
		}
	}
	return nums[0], nums[1], nums[2], nil
}

// chainTree builds one chain's entry for the hermes chains list.
func (h *Hermes) chainTree(dataRoot string, chain *config.Chain, overrides map[string]any, legacy bool) (map[string]any, error) {
	basePort, err := snapshotBasePort(dataRoot, chain.ChainID)
	if err != nil {
		return nil, err
	}
	rpcPort := ports.RPC(basePort)
	tree := map[string]any{
		"key_name":        "relayer",
		"id":              chain.ChainID,
		"rpc_addr":        fmt.Sprintf("http://127.0.0.1:%d", rpcPort),
		"grpc_addr":       fmt.Sprintf("http://127.0.0.1:%d", ports.GRPC(basePort)),
		"rpc_timeout":     "10s",
		"account_prefix":  chain.AccountPrefix,
		"store_prefix":    "ibc",
		"max_gas":         int64(300000),
		"gas_price":       map[string]any{"price": int64(0), "denom": "basecro"},
		"trusting_period": "336h",
	}
	if legacy {
		tree["websocket_addr"] = fmt.Sprintf("ws://localhost:%d/websocket", rpcPort)
	} else {
		tree["event_source"] = map[string]any{
			"mode":        "push",
			"url":         fmt.Sprintf("ws://127.0.0.1:%d/websocket", rpcPort),
			"batch_delay": "200ms",
		}
	}
	return tomldoc.Merge(tree, chainOverride(overrides, chain.ChainID)), nil
}

func (h *Hermes) WriteConfig(ctx context.Context, dataRoot string, chains []*config.Chain, overrides map[string]any) error {
	legacy, err := h.legacyEventConfig(ctx)
	if err != nil {
		return err
	}

	trees := make([]any, 0, len(chains))
	for _, chain := range chains {
		tree, err := h.chainTree(dataRoot, chain, overrides, legacy)
		if err != nil {
			return err
		}
		trees = append(trees, tree)
	}

	global := map[string]any{}
	for k, v := range overrides {
		if k != "chains" {
			global[k] = v
		}
	}
	doc := tomldoc.Merge(tomldoc.Doc{
		"global": tomldoc.Doc{"log_level": "info"},
		"chains": trees,
	}, global)
	if err := tomldoc.SaveTOML(h.configPath(dataRoot), doc); err != nil {
		return fmt.Errorf("writing relayer config: %w", err)
	}
	return nil
}

func (h *Hermes) ImportKey(ctx context.Context, dataRoot string, chain *config.Chain, mnemonic string) error {
	coinType := chain.CoinType
	if coinType == 0 {
		coinType = config.DefaultCoinType
	}
	_, err := h.cmd.Run(ctx,
		"--config", h.configPath(dataRoot),
		"keys", "add",
		"--chain", chain.ChainID,
		"--mnemonic-file", filepath.Join(dataRoot, "relayer.env"),
		"--overwrite",
		"--hd-path", fmt.Sprintf("m/44'/%d'/0'/0/0", coinType),
	)
	return err
}

func (h *Hermes) ProcessCommand([]*config.Chain) string {
	return "hermes --config relayer.toml start"
}
