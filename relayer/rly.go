package relayer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/devnet-labs/devnet/chaincmd"
	"github.com/devnet-labs/devnet/config"
	"github.com/devnet-labs/devnet/ports"
)

// Rly drives the go relayer: a YAML config directory under <data_root>/relayer
// and key restore through the rly CLI.
type Rly struct {
	cmd    *chaincmd.Command
	logger *zap.Logger
}

func NewRly(logger *zap.Logger) *Rly {
	return &Rly{cmd: chaincmd.NewCommand("rly", logger), logger: logger}
}

func (r *Rly) home(dataRoot string) string {
	return filepath.Join(dataRoot, "relayer")
}

// chainValue builds one chain's value tree for the rly chains map.
func (r *Rly) chainValue(dataRoot string, chain *config.Chain, overrides map[string]any) (map[string]any, error) {
	basePort, err := snapshotBasePort(dataRoot, chain.ChainID)
	if err != nil {
		return nil, err
	}
	entry := chainOverride(overrides, chain.ChainID)
	get := func(key string, fallback any) any {
		if entry != nil {
			if v, ok := entry[key]; ok {
				return v
			}
		}
		return fallback
	}

	gasPrice, _ := get("gas_price", map[string]any{}).(map[string]any)
	price := gasPrice["price"]
	if price == nil {
		price = int64(0)
	}
	denom, _ := gasPrice["denom"].(string)
	if denom == "" {
		denom = "basecro"
	}

	addressType, _ := get("address_type", map[string]any{}).(map[string]any)
	extraCodecs := []any{}
	if derivation, _ := addressType["derivation"].(string); derivation != "" {
		extraCodecs = append(extraCodecs, derivation)
	}

	coinType := chain.CoinType
	if coinType == 0 {
		coinType = 118
	}

	return map[string]any{
		"type": "cosmos",
		"value": map[string]any{
			"key-directory":                filepath.Join(dataRoot, chain.ChainID, "node0"),
			"key":                          "relayer",
			"chain-id":                     chain.ChainID,
			"rpc-addr":                     fmt.Sprintf("http://127.0.0.1:%d", ports.RPC(basePort)),
			"json-rpc-addr":                fmt.Sprintf("http://127.0.0.1:%d", ports.EVMRPC(basePort)),
			"account-prefix":               chain.AccountPrefix,
			"keyring-backend":              get("keyring-backend", "test"),
			"gas-adjustment":               get("gas_multiplier", 1.2),
			"feegrants":                    get("feegrants", nil),
			"gas-prices":                   fmt.Sprintf("%v%s", price, denom),
			"extension-options":            get("extension_options", []any{}),
			"min-gas-amount":               int64(0),
			"max-gas-amount":               get("max_gas", int64(300000)),
			"debug":                        get("debug", false),
			"timeout":                      get("timeout", "20s"),
			"block-timeout":                "",
			"output-format":                "json",
			"sign-mode":                    "direct",
			"extra-codecs":                 extraCodecs,
			"coin-type":                    coinType,
			"precompiled-contract-address": get("precompiled_contract_address", ""),
			"signing-algorithm":            "",
			"broadcast-mode":               "batch",
			"min-loop-duration":            "0s",
		},
	}, nil
}

func (r *Rly) WriteConfig(ctx context.Context, dataRoot string, chains []*config.Chain, overrides map[string]any) error {
	chainValues := map[string]any{}
	for _, chain := range chains {
		value, err := r.chainValue(dataRoot, chain, overrides)
		if err != nil {
			return err
		}
		chainValues[chain.ChainID] = value
	}

	logLevel := ""
	if global, ok := overrides["global"].(map[string]any); ok {
		logLevel, _ = global["log_level"].(string)
	}
	doc := map[string]any{
		"global": map[string]any{
			"api-listen-addr":  ":5183",
			"timeout":          "10s",
			"memo":             "",
			"light-cache-size": 20,
			"log-level":        logLevel,
		},
		"chains": chainValues,
	}

	configDir := filepath.Join(r.home(dataRoot), "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("creating relayer config dir: %w", err)
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding relayer config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), raw, 0o644); err != nil {
		return fmt.Errorf("writing relayer config: %w", err)
	}
	return nil
}

func (r *Rly) ImportKey(ctx context.Context, dataRoot string, chain *config.Chain, mnemonic string) error {
	_, err := r.cmd.Run(ctx,
		"keys", "restore", chain.ChainID, "relayer", mnemonic,
		"--home", r.home(dataRoot),
	)
	return err
}

// ProcessCommand names the relayer path after the chains it connects.
func (r *Rly) ProcessCommand(chains []*config.Chain) string {
	ids := make([]string, 0, len(chains))
	for _, chain := range chains {
		ids = append(ids, chain.ChainID)
	}
	return fmt.Sprintf("rly start %s --home relayer", strings.Join(ids, "-"))
}
