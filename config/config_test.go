package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testChain(vals ...*Validator) *Chain {
	return &Chain{ChainID: "testchain-1", Validators: vals}
}

func TestApplyDefaults(t *testing.T) {
	c := testChain(
		&Validator{},
		&Validator{Moniker: "custom", BasePort: 30000},
		&Validator{},
	)
	c.ApplyDefaults(26650)

	require.Equal(t, "node0", c.Validators[0].Moniker)
	require.Equal(t, 26650, c.Validators[0].BasePort)
	require.Equal(t, "127.0.0.1", c.Validators[0].Hostname)

	require.Equal(t, "custom", c.Validators[1].Moniker)
	require.Equal(t, 30000, c.Validators[1].BasePort)

	require.Equal(t, "node2", c.Validators[2].Moniker)
	require.Equal(t, 26670, c.Validators[2].BasePort)

	require.Equal(t, DefaultAccountPrefix, c.AccountPrefix)
	require.Equal(t, DefaultRelayerKey, c.KeyName)
}

func TestClusterValidateChainIDs(t *testing.T) {
	cl := &Cluster{Chains: []*Chain{
		testChain(&Validator{}),
		{ChainID: "", Validators: []*Validator{{}}},
	}}
	require.ErrorContains(t, cl.Validate(), "empty chain id")

	cl = &Cluster{Chains: []*Chain{
		testChain(&Validator{}),
		testChain(&Validator{}),
	}}
	require.ErrorContains(t, cl.Validate(), "duplicate chain id")
}

func TestChainValidateRejectsNoValidators(t *testing.T) {
	c := &Chain{ChainID: "x"}
	require.ErrorContains(t, c.Validate(), "no validators")
}

func TestValidatorStakedWithinCoins(t *testing.T) {
	c := testChain(&Validator{Coins: "100basecro", Staked: "1000basecro"})
	require.ErrorContains(t, c.Validate(), "exceeds allocated coins")

	c = testChain(&Validator{Coins: "1000basecro", Staked: "100basecro"})
	require.NoError(t, c.Validate())
}

func TestHWAccountRequiresAddress(t *testing.T) {
	c := testChain(&Validator{})
	c.HWAccount = &Account{Name: "ledger", Coins: "100cro"}
	require.ErrorContains(t, c.Validate(), `hw account "ledger": address is required`)

	c.HWAccount.Address = "cro1hwaddr"
	require.NoError(t, c.Validate())
}

func TestAccountVesting(t *testing.T) {
	for _, tt := range []struct {
		name    string
		account Account
		wantErr string
	}{
		{
			name:    "vesting subset within coins",
			account: Account{Name: "reserve", Coins: "100cro", Vesting: "1h", VestingCoins: "50cro"},
		},
		{
			name:    "vesting defaults to full allocation",
			account: Account{Name: "reserve", Coins: "100cro", Vesting: "1h"},
		},
		{
			name:    "vesting coins exceed allocation",
			account: Account{Name: "reserve", Coins: "100cro", Vesting: "1h", VestingCoins: "200cro"},
			wantErr: "exceed allocated coins",
		},
		{
			name:    "vesting coins without duration",
			account: Account{Name: "reserve", Coins: "100cro", VestingCoins: "50cro"},
			wantErr: "without vesting duration",
		},
		{
			name:    "bad duration",
			account: Account{Name: "reserve", Coins: "100cro", Vesting: "one hour"},
			wantErr: "invalid vesting duration",
		},
		{
			name:    "missing name",
			account: Account{Coins: "100cro"},
			wantErr: "name is required",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
