package chaincmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Account is the parsed output of the binary's key creation command.
type Account struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	PubKey   string `json:"pubkey,omitempty"`
	Mnemonic string `json:"mnemonic,omitempty"`
}

// CLI drives one node's home directory through the chain binary.
type CLI struct {
	cmd     *Command
	home    string
	chainID string
	nodeRPC string
	caps    Capabilities
	logger  *zap.Logger
}

// NewCLI creates a CLI bound to a home directory and RPC endpoint.
func NewCLI(cmd *Command, home, chainID, nodeRPC string, caps Capabilities, logger *zap.Logger) *CLI {
	return &CLI{
		cmd:     cmd,
		home:    home,
		chainID: chainID,
		nodeRPC: nodeRPC,
		caps:    caps,
		logger: logger.With(
			zap.String("chain_id", chainID),
			zap.String("home", home),
		),
	}
}

// Home returns the node home directory the CLI operates on.
func (c *CLI) Home() string { return c.home }

// Init initializes the home directory with default config and genesis.
func (c *CLI) Init(ctx context.Context, moniker string, cmdFlags string) error {
	args := []string{"init", moniker}
	args = append(args, SplitFlags(cmdFlags)...)
	args = append(args, "--chain-id", c.chainID, "--home", c.home)
	_, err := c.cmd.Run(ctx, args...)
	if err != nil {
		return fmt.Errorf("init node %s: %w", moniker, err)
	}
	return nil
}

// CreateAccount creates a keypair in the node's keyring, or recovers it when a
// mnemonic is given. The recovered account's mnemonic is echoed back on the
// returned value so callers can persist it.
func (c *CLI) CreateAccount(ctx context.Context, name, mnemonic string) (Account, error) {
	args := []string{"keys", "add", name}
	var stdin []byte
	if mnemonic != "" {
		args = append(args, "--recover")
		stdin = []byte(mnemonic + "\n")
	}
	args = append(args,
		"--home", c.home,
		"--output", "json",
		"--keyring-backend", "test",
	)
	out, err := c.cmd.RunWithInput(ctx, stdin, args...)
	if err != nil {
		return Account{}, fmt.Errorf("create account %q: %w", name, err)
	}
	var acct Account
	if err := json.Unmarshal(out, &acct); err != nil {
		return Account{}, fmt.Errorf("parsing keys add output for %q: %w", name, err)
	}
	if mnemonic != "" {
		acct.Mnemonic = mnemonic
	}
	return acct, nil
}

// DeleteAccount removes a key from the node's keyring.
func (c *CLI) DeleteAccount(ctx context.Context, name string) error {
	_, err := c.cmd.Run(ctx,
		"keys", "delete", name, "-y", "--force",
		"--home", c.home,
		"--keyring-backend", "test",
	)
	if err != nil {
		return fmt.Errorf("delete account %q: %w", name, err)
	}
	return nil
}

// Address shows the bech32 address of a named key.
func (c *CLI) Address(ctx context.Context, name string) (string, error) {
	out, err := c.cmd.Run(ctx,
		"keys", "show", "--address", name,
		"--home", c.home,
		"--keyring-backend", "test",
	)
	if err != nil {
		return "", fmt.Errorf("show key %q: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// genesisArgs prefixes genesis subcommands with the "genesis" grouping when
// the binary exposes it.
func (c *CLI) genesisArgs(sub ...string) []string {
	if c.caps.GenesisGrouping {
		return append([]string{"genesis"}, sub...)
	}
	return sub
}

// AddGenesisAccountOptions carries the optional vesting schedule.
type AddGenesisAccountOptions struct {
	VestingAmount  string
	VestingEndTime int64
}

// AddGenesisAccount funds an address in the genesis state.
func (c *CLI) AddGenesisAccount(ctx context.Context, address, coins string, opts AddGenesisAccountOptions) error {
	args := c.genesisArgs("add-genesis-account", address, coins)
	args = append(args, "--home", c.home, "--output", "json")
	if opts.VestingAmount != "" {
		args = append(args,
			"--vesting-amount", opts.VestingAmount,
			"--vesting-end-time", fmt.Sprintf("%d", opts.VestingEndTime),
		)
	}
	if _, err := c.cmd.Run(ctx, args...); err != nil {
		return fmt.Errorf("add genesis account %s: %w", address, err)
	}
	return nil
}

// GenTxOptions carries the validator registration parameters.
type GenTxOptions struct {
	MinSelfDelegation       string
	Pubkey                  string
	CommissionRate          string
	CommissionMaxRate       string
	CommissionMaxChangeRate string
	Details                 string
	SecurityContact         string
	GasPrices               string
}

// GenTx signs a genesis transaction delegating the given stake.
func (c *CLI) GenTx(ctx context.Context, name, coins string, cmdFlags string, opts GenTxOptions) error {
	minSelf := opts.MinSelfDelegation
	if minSelf == "" {
		minSelf = "1"
	}
	args := c.genesisArgs("gentx", name, coins)
	args = append(args, SplitFlags(cmdFlags)...)
	args = append(args,
		"--min-self-delegation", minSelf,
		"--home", c.home,
		"--chain-id", c.chainID,
		"--keyring-backend", "test",
	)
	args = append(args, Flags(map[string]string{
		"pubkey":                     opts.Pubkey,
		"commission_rate":            opts.CommissionRate,
		"commission_max_rate":        opts.CommissionMaxRate,
		"commission_max_change_rate": opts.CommissionMaxChangeRate,
		"details":                    opts.Details,
		"security_contact":           opts.SecurityContact,
		"gas_prices":                 opts.GasPrices,
	})...)
	if _, err := c.cmd.Run(ctx, args...); err != nil {
		return fmt.Errorf("gentx for %q: %w", name, err)
	}
	return nil
}

// CollectGenTxs folds all gentx files into the genesis validator set.
func (c *CLI) CollectGenTxs(ctx context.Context, gentxDir string) error {
	args := c.genesisArgs("collect-gentxs", gentxDir)
	args = append(args, "--home", c.home)
	if _, err := c.cmd.Run(ctx, args...); err != nil {
		return fmt.Errorf("collect gentxs: %w", err)
	}
	return nil
}

// ValidateGenesis asks the binary to validate the genesis document.
func (c *CLI) ValidateGenesis(ctx context.Context, cmdFlags string) error {
	args := c.genesisArgs("validate-genesis")
	args = append(args, SplitFlags(cmdFlags)...)
	args = append(args, "--home", c.home)
	if _, err := c.cmd.Run(ctx, args...); err != nil {
		return fmt.Errorf("validate genesis: %w", err)
	}
	return nil
}

// NodeID returns the node's p2p identity via the binary.
func (c *CLI) NodeID(ctx context.Context) (string, error) {
	out, err := c.cmd.Run(ctx, "tendermint", "show-node-id", "--home", c.home)
	if err != nil {
		return "", fmt.Errorf("show node id: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Status queries the running node's status endpoint.
func (c *CLI) Status(ctx context.Context) (map[string]any, error) {
	out, err := c.cmd.Run(ctx, "status", "--node", c.nodeRPC)
	if err != nil {
		return nil, fmt.Errorf("node status: %w", err)
	}
	var status map[string]any
	if err := json.Unmarshal(out, &status); err != nil {
		return nil, fmt.Errorf("parsing status output: %w", err)
	}
	return status, nil
}

// SyncInfo extracts the sync section from a status document, accepting both
// pre- and post-sdk-50 field spellings.
func SyncInfo(status map[string]any) (map[string]any, error) {
	for _, key := range []string{"SyncInfo", "sync_info"} {
		if info, ok := status[key].(map[string]any); ok {
			return info, nil
		}
	}
	return nil, fmt.Errorf("status has no sync info section")
}
