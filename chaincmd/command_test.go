package chaincmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFlags(t *testing.T) {
	got := Flags(map[string]string{
		"min_self_delegation": "1",
		"commission_rate":     "0.1",
		"pubkey":              "",
		"_home_":              "/tmp/x",
	})
	require.Equal(t, []string{
		"--home", "/tmp/x",
		"--commission-rate", "0.1",
		"--min-self-delegation", "1",
	}, got)
}

func TestSplitFlags(t *testing.T) {
	require.Nil(t, SplitFlags(""))
	require.Nil(t, SplitFlags("   "))
	require.Equal(t, []string{"--trace", "--unsafe-cors"}, SplitFlags(" --trace  --unsafe-cors "))
}

// fakeBinary writes an executable shell script and returns its path.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chaind")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestRunCapturesFailureOutput(t *testing.T) {
	bin := fakeBinary(t, `echo "boom: bad flag" >&2; exit 1`)
	cmd := NewCommand(bin, zaptest.NewLogger(t))

	_, err := cmd.Run(context.Background(), "init", "node0")
	require.Error(t, err)
	require.ErrorContains(t, err, "boom: bad flag")
	require.ErrorContains(t, err, "init node0")
}

func TestRunWithInput(t *testing.T) {
	bin := fakeBinary(t, `read line; echo "got:$line"`)
	cmd := NewCommand(bin, zaptest.NewLogger(t))

	out, err := cmd.RunWithInput(context.Background(), []byte("secret words\n"))
	require.NoError(t, err)
	require.Equal(t, "got:secret words\n", string(out))
}

func TestProbeCapabilities(t *testing.T) {
	modern := fakeBinary(t, `
case "$1" in
genesis) echo "Available Commands:"; echo "  add-genesis-account";;
tx) echo "Available Commands:"; echo "  register-account";;
*) exit 1;;
esac`)
	caps := ProbeCapabilities(context.Background(), NewCommand(modern, zaptest.NewLogger(t)))
	require.True(t, caps.GenesisGrouping)
	require.True(t, caps.ICAAuth)

	legacy := fakeBinary(t, `echo "Error: unknown command" >&2; exit 1`)
	caps = ProbeCapabilities(context.Background(), NewCommand(legacy, zaptest.NewLogger(t)))
	require.False(t, caps.GenesisGrouping)
	require.False(t, caps.ICAAuth)
}

func TestCreateAccountParsesJSON(t *testing.T) {
	bin := fakeBinary(t, `
# keys add <name> ... --output json
echo '{"name":"validator","address":"cro1qqqsyqcyq5rqwzqfpg9scrgwpugpzysnrujsuw","pubkey":"pub","mnemonic":"witch collapse"}'`)
	cli := NewCLI(NewCommand(bin, zaptest.NewLogger(t)), t.TempDir(), "test-1", "tcp://127.0.0.1:26657", Capabilities{}, zaptest.NewLogger(t))

	acct, err := cli.CreateAccount(context.Background(), "validator", "")
	require.NoError(t, err)
	require.Equal(t, "validator", acct.Name)
	require.Equal(t, "cro1qqqsyqcyq5rqwzqfpg9scrgwpugpzysnrujsuw", acct.Address)
	require.Equal(t, "witch collapse", acct.Mnemonic)
}

func TestSyncInfo(t *testing.T) {
	info, err := SyncInfo(map[string]any{"sync_info": map[string]any{"latest_block_height": "10"}})
	require.NoError(t, err)
	require.Equal(t, "10", info["latest_block_height"])

	info, err = SyncInfo(map[string]any{"SyncInfo": map[string]any{"latest_block_height": "11"}})
	require.NoError(t, err)
	require.Equal(t, "11", info["latest_block_height"])

	_, err = SyncInfo(map[string]any{})
	require.Error(t, err)
}
