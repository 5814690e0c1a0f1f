// Package relayer wires a multi-chain devnet into one of the two supported
// IBC relayer ecosystems: it builds the relayer-specific config tree per
// chain from that chain's persisted snapshot and imports a funded relayer
// account into the relayer's own key store.
package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/devnet-labs/devnet/config"
)

// Kind selects the relayer ecosystem.
type Kind string

const (
	KindHermes Kind = "hermes"
	KindRly    Kind = "rly"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindHermes, KindRly:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown relayer kind %q", s)
	}
}

// Relayer abstracts one ecosystem. Config building and key import differ per
// implementation; the orchestration sequence in Wire does not.
type Relayer interface {
	// WriteConfig writes the relayer's config artifact under dataRoot,
	// covering every chain, with user overrides merged in.
	WriteConfig(ctx context.Context, dataRoot string, chains []*config.Chain, overrides map[string]any) error
	// ImportKey restores the funded relayer account for one chain from its
	// mnemonic.
	ImportKey(ctx context.Context, dataRoot string, chain *config.Chain, mnemonic string) error
	// ProcessCommand is the supervised long-running relayer command line,
	// relative to the data root.
	ProcessCommand(chains []*config.Chain) string
}

// New returns the implementation for a kind.
func New(kind Kind, logger *zap.Logger) (Relayer, error) {
	switch kind {
	case KindHermes:
		return NewHermes(logger), nil
	case KindRly:
		return NewRly(logger), nil
	default:
		return nil, fmt.Errorf("unknown relayer kind %q", kind)
	}
}

// Wire generates relayer configuration for every chain and imports each
// chain's funded relayer account, named by the chain's key_name. Only called
// for multi-chain clusters. A key-import failure is fatal; no partial relayer
// state is cleaned up.
func Wire(ctx context.Context, r Relayer, dataRoot string, chains []*config.Chain, overrides map[string]any, logger *zap.Logger) error {
	if err := r.WriteConfig(ctx, dataRoot, chains, overrides); err != nil {
		return err
	}
	for _, chain := range chains {
		mnemonic, err := relayerMnemonic(dataRoot, chain)
		if err != nil {
			return err
		}
		// one-shot export consumed by relayer tooling and test scripts
		envPath := filepath.Join(dataRoot, "relayer.env")
		if err := os.WriteFile(envPath, []byte(mnemonic), 0o600); err != nil {
			return fmt.Errorf("writing relayer.env: %w", err)
		}
		logger.Info("importing relayer key",
			zap.String("chain_id", chain.ChainID),
			zap.String("key_name", chain.KeyName))
		if err := r.ImportKey(ctx, dataRoot, chain, mnemonic); err != nil {
			return fmt.Errorf("importing relayer key for %s: %w", chain.ChainID, err)
		}
	}
	return nil
}

type account struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Mnemonic string `json:"mnemonic,omitempty"`
}

// relayerMnemonic scans a chain's generated account list for the configured
// relayer key name and returns its mnemonic.
func relayerMnemonic(dataRoot string, chain *config.Chain) (string, error) {
	name := chain.KeyName
	if name == "" {
		name = config.DefaultRelayerKey
	}
	path := filepath.Join(dataRoot, chain.ChainID, "accounts.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	var accounts []account
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	for _, acct := range accounts {
		if acct.Name == name {
			if acct.Mnemonic == "" {
				return "", fmt.Errorf("account %q on %s has no mnemonic", name, chain.ChainID)
			}
			return acct.Mnemonic, nil
		}
	}
	return "", fmt.Errorf("chain %s has no account named %q", chain.ChainID, name)
}

// snapshotBasePort reads the first validator's base port from a chain's
// persisted config snapshot, the authority on resolved ports.
func snapshotBasePort(dataRoot, chainID string) (int, error) {
	raw, err := os.ReadFile(filepath.Join(dataRoot, chainID, "config.json"))
	if err != nil {
		return 0, fmt.Errorf("reading config snapshot: %w", err)
	}
	var snapshot config.Chain
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return 0, fmt.Errorf("decoding config snapshot: %w", err)
	}
	if len(snapshot.Validators) == 0 {
		return 0, fmt.Errorf("chain %s snapshot has no validators", chainID)
	}
	return snapshot.Validators[0].BasePort, nil
}

// chainOverride picks the per-chain override entry (matched by id) out of the
// relayer section's chains list.
func chainOverride(overrides map[string]any, chainID string) map[string]any {
	entries, _ := overrides["chains"].([]any)
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := m["id"].(string); id == chainID {
			return m
		}
	}
	return nil
}
