// Package config defines the declarative cluster configuration: the desired
// shape of every chain in the devnet, its validators and funded accounts, and
// the optional relayer section. Configs are immutable after load; the cluster
// package persists a resolved snapshot (config.json) per chain and is the only
// writer of that snapshot.
package config

import (
	"fmt"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/devnet-labs/devnet/ports"
)

// ConsensusKey is a pre-supplied ed25519 consensus keypair, base64 encoded.
type ConsensusKey struct {
	Pub  string `yaml:"pub" json:"pub"`
	Priv string `yaml:"priv" json:"priv"`
}

// Validator describes one node's identity and initial stake.
type Validator struct {
	Moniker  string `yaml:"moniker,omitempty" json:"moniker"`
	BasePort int    `yaml:"base_port,omitempty" json:"base_port"`
	Hostname string `yaml:"hostname,omitempty" json:"hostname"`

	Mnemonic     string        `yaml:"mnemonic,omitempty" json:"mnemonic,omitempty"`
	ConsensusKey *ConsensusKey `yaml:"consensus_key,omitempty" json:"consensus_key,omitempty"`

	Coins  string `yaml:"coins,omitempty" json:"coins,omitempty"`
	Staked string `yaml:"staked,omitempty" json:"staked,omitempty"`
	Pubkey string `yaml:"pubkey,omitempty" json:"pubkey,omitempty"`

	MinSelfDelegation       string `yaml:"min_self_delegation,omitempty" json:"min_self_delegation,omitempty"`
	CommissionRate          string `yaml:"commission_rate,omitempty" json:"commission_rate,omitempty"`
	CommissionMaxRate       string `yaml:"commission_max_rate,omitempty" json:"commission_max_rate,omitempty"`
	CommissionMaxChangeRate string `yaml:"commission_max_change_rate,omitempty" json:"commission_max_change_rate,omitempty"`
	Details                 string `yaml:"details,omitempty" json:"details,omitempty"`
	SecurityContact         string `yaml:"security_contact,omitempty" json:"security_contact,omitempty"`
	GasPrices               string `yaml:"gas_prices,omitempty" json:"gas_prices,omitempty"`

	// per-node overrides layered on top of the chain-wide documents
	Config       map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
	AppConfig    map[string]any `yaml:"app-config,omitempty" json:"app-config,omitempty"`
	ClientConfig map[string]any `yaml:"client_config,omitempty" json:"client_config,omitempty"`
}

// Account describes a funded non-validator account.
type Account struct {
	Name     string `yaml:"name" json:"name"`
	Address  string `yaml:"address,omitempty" json:"address,omitempty"`
	Mnemonic string `yaml:"mnemonic,omitempty" json:"mnemonic,omitempty"`
	Coins    string `yaml:"coins,omitempty" json:"coins,omitempty"`

	// Vesting is a duration ("1h", "30m") added to genesis time to obtain the
	// vesting end time. VestingCoins, when set, vests only that subset.
	Vesting      string `yaml:"vesting,omitempty" json:"vesting,omitempty"`
	VestingCoins string `yaml:"vesting_coins,omitempty" json:"vesting_coins,omitempty"`
}

// Chain is one blockchain's desired devnet shape.
type Chain struct {
	ChainID string `yaml:"-" json:"chain_id"`
	// Path is the config file this chain was loaded from, recorded so
	// genesis_file references can resolve %(here)s.
	Path string `yaml:"-" json:"path,omitempty"`

	Cmd        string `yaml:"cmd,omitempty" json:"cmd,omitempty"`
	CmdFlags   string `yaml:"cmd-flags,omitempty" json:"cmd-flags,omitempty"`
	StartFlags string `yaml:"start-flags,omitempty" json:"start-flags,omitempty"`

	Validators []*Validator `yaml:"validators" json:"validators"`
	Accounts   []*Account   `yaml:"accounts,omitempty" json:"accounts,omitempty"`
	HWAccount  *Account     `yaml:"hw_account,omitempty" json:"hw_account,omitempty"`

	Genesis     map[string]any `yaml:"genesis,omitempty" json:"genesis,omitempty"`
	Config      map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
	AppConfig   map[string]any `yaml:"app-config,omitempty" json:"app-config,omitempty"`
	GenesisFile string         `yaml:"genesis_file,omitempty" json:"genesis_file,omitempty"`

	// Peers bypasses automatic peer discovery when set.
	Peers string `yaml:"peers,omitempty" json:"peers,omitempty"`

	AccountPrefix string `yaml:"account-prefix,omitempty" json:"account-prefix,omitempty"`
	CoinType      int    `yaml:"coin-type,omitempty" json:"coin-type,omitempty"`
	// KeyName is the funded account imported into the relayer, default "relayer".
	KeyName string `yaml:"key_name,omitempty" json:"key_name,omitempty"`
}

// Cluster is the top-level declarative input: an ordered set of chains plus an
// optional relayer section kept as a raw document for the relayer package.
type Cluster struct {
	Chains  []*Chain
	Relayer map[string]any
}

const (
	DefaultHostname      = "127.0.0.1"
	DefaultAccountPrefix = "cro"
	DefaultCoinType      = 394
	DefaultRelayerKey    = "relayer"
)

// ApplyDefaults fills the derived per-validator defaults: moniker "node{i}",
// base port basePort+i*stride, loopback hostname. Safe to call repeatedly.
func (c *Chain) ApplyDefaults(basePort int) {
	for i, v := range c.Validators {
		if v.Moniker == "" {
			v.Moniker = fmt.Sprintf("node%d", i)
		}
		if v.BasePort == 0 {
			v.BasePort = basePort + i*ports.PortStride
		}
		if v.Hostname == "" {
			v.Hostname = DefaultHostname
		}
	}
	if c.AccountPrefix == "" {
		c.AccountPrefix = DefaultAccountPrefix
	}
	if c.CoinType == 0 {
		c.CoinType = DefaultCoinType
	}
	if c.KeyName == "" {
		c.KeyName = DefaultRelayerKey
	}
}

// Validate checks the cluster eagerly, before any filesystem mutation.
func (cl *Cluster) Validate() error {
	if len(cl.Chains) == 0 {
		return fmt.Errorf("config contains no chains")
	}
	seen := make(map[string]bool, len(cl.Chains))
	for _, chain := range cl.Chains {
		if chain.ChainID == "" {
			return fmt.Errorf("chain with empty chain id")
		}
		if seen[chain.ChainID] {
			return fmt.Errorf("duplicate chain id %q", chain.ChainID)
		}
		seen[chain.ChainID] = true
		if err := chain.Validate(); err != nil {
			return fmt.Errorf("chain %s: %w", chain.ChainID, err)
		}
	}
	return nil
}

// Validate checks one chain's specs.
func (c *Chain) Validate() error {
	if len(c.Validators) == 0 {
		return fmt.Errorf("no validators configured")
	}
	for i, v := range c.Validators {
		if v.Staked != "" {
			staked, err := sdk.ParseCoinNormalized(v.Staked)
			if err != nil {
				return fmt.Errorf("validator %d: invalid staked amount %q: %w", i, v.Staked, err)
			}
			if !staked.Amount.GT(math.ZeroInt()) {
				return fmt.Errorf("validator %d: staked amount must be positive", i)
			}
			if v.Coins != "" {
				coins, err := sdk.ParseCoinsNormalized(v.Coins)
				if err != nil {
					return fmt.Errorf("validator %d: invalid coins %q: %w", i, v.Coins, err)
				}
				if !sdk.NewCoins(staked).IsAllLTE(coins) {
					return fmt.Errorf("validator %d: staked %s exceeds allocated coins %s", i, v.Staked, v.Coins)
				}
			}
		}
	}
	for _, a := range c.Accounts {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("account %q: %w", a.Name, err)
		}
	}
	if c.HWAccount != nil {
		if err := c.HWAccount.Validate(); err != nil {
			return fmt.Errorf("hw account %q: %w", c.HWAccount.Name, err)
		}
		// Hardware-held keys never enter a node keyring, so the account is
		// only usable when its address is supplied up front.
		if c.HWAccount.Address == "" {
			return fmt.Errorf("hw account %q: address is required", c.HWAccount.Name)
		}
	}
	return nil
}

// Validate rejects accounts whose vesting schedule is inconsistent: the vesting
// subset must not exceed the total allocation and the duration must parse.
func (a *Account) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("account name is required")
	}
	if a.Vesting != "" {
		if _, err := time.ParseDuration(a.Vesting); err != nil {
			return fmt.Errorf("invalid vesting duration %q: %w", a.Vesting, err)
		}
	}
	if a.VestingCoins != "" {
		if a.Vesting == "" {
			return fmt.Errorf("vesting_coins set without vesting duration")
		}
		vesting, err := sdk.ParseCoinsNormalized(a.VestingCoins)
		if err != nil {
			return fmt.Errorf("invalid vesting_coins %q: %w", a.VestingCoins, err)
		}
		coins, err := sdk.ParseCoinsNormalized(a.Coins)
		if err != nil {
			return fmt.Errorf("invalid coins %q: %w", a.Coins, err)
		}
		if !vesting.IsAllLTE(coins) {
			return fmt.Errorf("vesting_coins %s exceed allocated coins %s", a.VestingCoins, a.Coins)
		}
	}
	return nil
}

// FindChain returns the chain with the given id, or nil.
func (cl *Cluster) FindChain(chainID string) *Chain {
	for _, c := range cl.Chains {
		if c.ChainID == chainID {
			return c
		}
	}
	return nil
}
