package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devnet-labs/devnet/chaincmd"
	"github.com/devnet-labs/devnet/config"
	"github.com/devnet-labs/devnet/internal/tomldoc"
)

// assembleGenesis runs the genesis pipeline: merge chain overrides onto the
// shared genesis, fund every validator and account in declaration order,
// collect gentx entries into the validator set and materialize the frozen
// genesis into every node directory. Funding order is observable in the
// genesis account list, so nodes are processed strictly sequentially.
func (d *Devnet) assembleGenesis(ctx context.Context) error {
	genesis, err := d.mergeGenesisOverrides()
	if err != nil {
		return err
	}
	genesisTime, err := d.genesisTimeIfNeeded(genesis)
	if err != nil {
		return err
	}

	accounts, err := d.fundValidators(ctx)
	if err != nil {
		return err
	}
	for _, spec := range d.chain.Accounts {
		acct, err := d.fundAccount(ctx, spec, genesisTime)
		if err != nil {
			return fmt.Errorf("account %q: %w", spec.Name, err)
		}
		accounts = append(accounts, acct)
	}
	if d.chain.HWAccount != nil {
		acct, err := d.fundAccount(ctx, d.chain.HWAccount, genesisTime)
		if err != nil {
			return fmt.Errorf("hw account %q: %w", d.chain.HWAccount.Name, err)
		}
		accounts = append(accounts, acct)
	}

	if err := d.writeAccounts(accounts); err != nil {
		return err
	}
	if err := d.collectGentxs(ctx); err != nil {
		return err
	}
	return d.materialize()
}

// mergeGenesisOverrides deep-merges the chain's genesis override document onto
// the shared genesis and rewrites it in place. Numbers are decoded as
// json.Number so integers beyond float64 precision survive the round trip;
// with no overrides configured the file is left byte-untouched.
func (d *Devnet) mergeGenesisOverrides() (tomldoc.Doc, error) {
	raw, err := os.ReadFile(d.sharedGenesisPath())
	if err != nil {
		return nil, fmt.Errorf("reading shared genesis: %w", err)
	}
	var genesis map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&genesis); err != nil {
		return nil, fmt.Errorf("decoding genesis: %w", err)
	}
	if len(d.chain.Genesis) == 0 {
		return genesis, nil
	}
	genesis = tomldoc.Merge(genesis, d.chain.Genesis)
	merged, err := json.Marshal(genesis)
	if err != nil {
		return nil, fmt.Errorf("encoding genesis: %w", err)
	}
	if err := os.WriteFile(d.sharedGenesisPath(), merged, 0o644); err != nil {
		return nil, fmt.Errorf("writing merged genesis: %w", err)
	}
	return genesis, nil
}

// genesisTimeIfNeeded resolves genesis_time only when some account carries a
// vesting schedule; chains without vesting tolerate a missing or foreign
// genesis_time.
func (d *Devnet) genesisTimeIfNeeded(genesis tomldoc.Doc) (time.Time, error) {
	if !d.vestingConfigured() {
		return time.Time{}, nil
	}
	return parseGenesisTime(genesis)
}

func (d *Devnet) vestingConfigured() bool {
	for _, a := range d.chain.Accounts {
		if a.Vesting != "" {
			return true
		}
	}
	return d.chain.HWAccount != nil && d.chain.HWAccount.Vesting != ""
}

func parseGenesisTime(genesis tomldoc.Doc) (time.Time, error) {
	raw, _ := genesis["genesis_time"].(string)
	if raw == "" {
		return time.Time{}, fmt.Errorf("genesis document missing genesis_time")
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing genesis_time %q: %w", raw, err)
	}
	return t, nil
}

// fundValidators creates every validator's key in its own node keyring, funds
// it and, when a stake is configured, produces that node's gentx.
func (d *Devnet) fundValidators(ctx context.Context) ([]chaincmd.Account, error) {
	accounts := make([]chaincmd.Account, 0, len(d.nodes))
	for i, val := range d.chain.Validators {
		cli := d.cli(i)
		acct, err := cli.CreateAccount(ctx, "validator", val.Mnemonic)
		if err != nil {
			return nil, fmt.Errorf("node%d validator key: %w", i, err)
		}
		accounts = append(accounts, acct)
		if val.Coins != "" {
			if err := cli.AddGenesisAccount(ctx, acct.Address, val.Coins, chaincmd.AddGenesisAccountOptions{}); err != nil {
				return nil, fmt.Errorf("node%d funding: %w", i, err)
			}
		}
		if val.Staked != "" {
			opts := chaincmd.GenTxOptions{
				MinSelfDelegation:       val.MinSelfDelegation,
				Pubkey:                  val.Pubkey,
				CommissionRate:          val.CommissionRate,
				CommissionMaxRate:       val.CommissionMaxRate,
				CommissionMaxChangeRate: val.CommissionMaxChangeRate,
				Details:                 val.Details,
				SecurityContact:         val.SecurityContact,
				GasPrices:               val.GasPrices,
			}
			if err := cli.GenTx(ctx, "validator", val.Staked, d.chain.CmdFlags, opts); err != nil {
				return nil, fmt.Errorf("node%d gentx: %w", i, err)
			}
		}
	}
	return accounts, nil
}

// fundAccount creates or recovers a non-validator account in node0's keyring
// and funds it, with an optional vesting schedule ending at
// genesis_time + vesting duration.
func (d *Devnet) fundAccount(ctx context.Context, spec *config.Account, genesisTime time.Time) (chaincmd.Account, error) {
	var acct chaincmd.Account
	if spec.Address != "" {
		acct = chaincmd.Account{Name: spec.Name, Address: spec.Address}
	} else {
		var err error
		acct, err = d.cli(0).CreateAccount(ctx, spec.Name, spec.Mnemonic)
		if err != nil {
			return chaincmd.Account{}, err
		}
	}

	opts := chaincmd.AddGenesisAccountOptions{}
	if spec.Vesting != "" {
		dur, err := time.ParseDuration(spec.Vesting)
		if err != nil {
			return chaincmd.Account{}, fmt.Errorf("vesting duration: %w", err)
		}
		opts.VestingEndTime = genesisTime.Add(dur).Unix()
		opts.VestingAmount = spec.VestingCoins
		if opts.VestingAmount == "" {
			opts.VestingAmount = spec.Coins
		}
	}
	if err := d.cli(0).AddGenesisAccount(ctx, acct.Address, spec.Coins, opts); err != nil {
		return chaincmd.Account{}, err
	}
	return acct, nil
}

func (d *Devnet) writeAccounts(accounts []chaincmd.Account) error {
	raw, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("encoding accounts: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d.dataDir, "accounts.json"), raw, 0o644); err != nil {
		return fmt.Errorf("writing accounts.json: %w", err)
	}
	return nil
}

// ReadAccounts loads a chain's generated account list.
func ReadAccounts(dataDir string) ([]chaincmd.Account, error) {
	raw, err := os.ReadFile(filepath.Join(dataDir, "accounts.json"))
	if err != nil {
		return nil, fmt.Errorf("reading accounts.json: %w", err)
	}
	var accounts []chaincmd.Account
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decoding accounts.json: %w", err)
	}
	return accounts, nil
}

// FindAccount returns the named account from a chain's account list.
func FindAccount(dataRoot, chainID, name string) (chaincmd.Account, error) {
	accounts, err := ReadAccounts(filepath.Join(dataRoot, chainID))
	if err != nil {
		return chaincmd.Account{}, err
	}
	for _, acct := range accounts {
		if acct.Name == name {
			return acct, nil
		}
	}
	return chaincmd.Account{}, fmt.Errorf("chain %s has no account named %q", chainID, name)
}

// collectGentxs folds produced gentx entries into the genesis validator set.
// Skipped when no validator staked anything.
func (d *Devnet) collectGentxs(ctx context.Context) error {
	gentxDir := filepath.Join(d.dataDir, "gentx")
	entries, err := os.ReadDir(gentxDir)
	if err != nil {
		return fmt.Errorf("reading gentx dir: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	if err := d.cli(0).CollectGenTxs(ctx, gentxDir); err != nil {
		return fmt.Errorf("collecting gentxs: %w", err)
	}
	return nil
}

// materialize freezes the assembled genesis into an independent byte-identical
// copy per node directory.
func (d *Devnet) materialize() error {
	final, err := os.ReadFile(d.sharedGenesisPath())
	if err != nil {
		return fmt.Errorf("reading final genesis: %w", err)
	}
	for i, node := range d.nodes {
		if err := node.MaterializeGenesis(final); err != nil {
			return fmt.Errorf("node%d: %w", i, err)
		}
	}
	return nil
}
