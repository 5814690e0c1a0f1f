package cluster

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/ini.v1"

	"github.com/devnet-labs/devnet/config"
	"github.com/devnet-labs/devnet/internal/tomldoc"
	"github.com/devnet-labs/devnet/supervisor"
)

// fakeChaind is a stand-in chain binary: init writes a minimal home layout,
// key creation prints unique addresses, genesis commands log their arguments.
const fakeChaind = `#!/bin/sh
set -e

home=""
prev=""
for a in "$@"; do
  [ "$prev" = "--home" ] && home="$a"
  prev="$a"
done

case "$1" in
init)
  mkdir -p "$home/config" "$home/data"
  cat > "$home/config/genesis.json" <<'EOF'
{"genesis_time": "2023-01-01T00:00:00Z", "chain_id": "devnet", "app_state": {"staking": {"params": {"unbonding_time": "1814400s"}}}}
EOF
  cat > "$home/config/config.toml" <<'EOF'
proxy_app = "tcp://127.0.0.1:26658"
moniker = "moniker"

[rpc]
laddr = "tcp://127.0.0.1:26657"

[p2p]
laddr = "tcp://0.0.0.0:26656"
persistent_peers = ""

[consensus]
timeout_commit = "5s"

[statesync]
enable = false
EOF
  cat > "$home/config/app.toml" <<'EOF'
minimum-gas-prices = ""
pruning = "default"

[api]
enable = false

[grpc]
address = "0.0.0.0:9090"
EOF
  key=$(head -c 64 /dev/urandom | base64 | tr -d '\n')
  printf '{"priv_key":{"type":"tendermint/PrivKeyEd25519","value":"%s"}}' "$key" > "$home/config/node_key.json"
  echo '{}' > "$home/config/priv_validator_key.json"
  ;;
keys)
  if [ "$2" = "add" ]; then
    printf '{"name":"%s","address":"cro1%s","pubkey":"pub"}\n' "$3" "$(head -c 6 /dev/urandom | od -An -tx1 | tr -d ' \n')"
  fi
  ;;
add-genesis-account)
  echo "$*" >> "$home/add-genesis-account.log"
  ;;
gentx)
  echo "$*" > "$home/config/gentx/gentx-$(basename "$home").json"
  ;;
collect-gentxs)
  ;;
validate-genesis)
  echo "$*" >> "$home/validate-genesis.log"
  ;;
tendermint)
  echo "0000000000000000000000000000000000000000"
  ;;
status)
  printf '{"SyncInfo":{"latest_block_height":"100","latest_block_hash":"ABCDEF"}}\n'
  ;;
*)
  echo "unknown command" >&2
  exit 1
  ;;
esac
`

func writeFakeChaind(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chain-maind")
	require.NoError(t, os.WriteFile(path, []byte(fakeChaind), 0o755))
	return path
}

func testChain(t *testing.T, chainID string, numValidators int) *config.Chain {
	t.Helper()
	chain := &config.Chain{
		ChainID: chainID,
		Cmd:     writeFakeChaind(t),
	}
	for i := 0; i < numValidators; i++ {
		chain.Validators = append(chain.Validators, &config.Validator{
			Coins:  "10cro",
			Staked: "1cro",
		})
	}
	return chain
}

func TestInitDevnetEndToEnd(t *testing.T) {
	ctx := context.Background()
	dataRoot := t.TempDir()
	dataDir := filepath.Join(dataRoot, "testchain")
	require.NoError(t, os.Mkdir(dataDir, 0o755))

	chain := testChain(t, "testchain", 4)
	devnet := NewDevnet(dataDir, chain, DevnetOptions{}, zaptest.NewLogger(t))
	require.NoError(t, devnet.Init(ctx, 26650))

	// every node's rpc listener lands on base+7 with a stride of 10
	wantRPC := []string{
		"tcp://127.0.0.1:26657",
		"tcp://127.0.0.1:26667",
		"tcp://127.0.0.1:26677",
		"tcp://127.0.0.1:26687",
	}
	for i := 0; i < 4; i++ {
		doc, err := tomldoc.LoadTOML(filepath.Join(dataDir, "node"+string(rune('0'+i)), "config", "config.toml"))
		require.NoError(t, err)
		rpc := doc["rpc"].(map[string]any)
		require.Equal(t, wantRPC[i], rpc["laddr"])
	}

	// genesis materialized byte-identical into every node directory
	first, err := os.ReadFile(filepath.Join(dataDir, "node0/config/genesis.json"))
	require.NoError(t, err)
	for i := 1; i < 4; i++ {
		other, err := os.ReadFile(filepath.Join(dataDir, "node"+string(rune('0'+i)), "config", "genesis.json"))
		require.NoError(t, err)
		require.Equal(t, first, other)
		info, err := os.Lstat(filepath.Join(dataDir, "node"+string(rune('0'+i)), "config", "genesis.json"))
		require.NoError(t, err)
		require.Zero(t, info.Mode()&os.ModeSymlink)
	}

	accounts, err := ReadAccounts(dataDir)
	require.NoError(t, err)
	require.Len(t, accounts, 4)
	for _, acct := range accounts {
		require.Equal(t, "validator", acct.Name)
		require.True(t, strings.HasPrefix(acct.Address, "cro1"))
	}

	tasks, err := ini.Load(filepath.Join(dataDir, supervisor.TasksFile))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		sec := tasks.Section("program:testchain-node" + string(rune('0'+i)))
		require.Contains(t, sec.Key("command").String(), "start --home .")
	}

	// genesis validated since statesync is off
	_, err = os.Stat(filepath.Join(dataDir, "node0/validate-genesis.log"))
	require.NoError(t, err)
}

func TestInitDevnetPeerTopology(t *testing.T) {
	ctx := context.Background()
	dataDir := filepath.Join(t.TempDir(), "peerchain")
	require.NoError(t, os.Mkdir(dataDir, 0o755))

	chain := testChain(t, "peerchain", 3)
	devnet := NewDevnet(dataDir, chain, DevnetOptions{}, zaptest.NewLogger(t))
	require.NoError(t, devnet.Init(ctx, 26650))

	for i, node := range devnet.nodes {
		id, err := node.NodeID()
		require.NoError(t, err)
		self := PeerAddress(id, "127.0.0.1", 26650+i*10)

		doc, err := tomldoc.LoadTOML(node.ConfigTOMLPath())
		require.NoError(t, err)
		p2p := doc["p2p"].(map[string]any)
		peers := p2p["persistent_peers"].(string)
		require.Equal(t, peers, p2p["persistent-peers"])

		entries := strings.Split(peers, ",")
		require.Len(t, entries, 2)
		require.NotContains(t, entries, self)

		require.Equal(t, false, p2p["addr_book_strict"])
		require.Equal(t, true, p2p["allow_duplicate_ip"])
	}
}

func TestInitDevnetVestingAccount(t *testing.T) {
	ctx := context.Background()
	dataDir := filepath.Join(t.TempDir(), "vestchain")
	require.NoError(t, os.Mkdir(dataDir, 0o755))

	chain := testChain(t, "vestchain", 1)
	chain.Accounts = []*config.Account{
		{Name: "reserve", Coins: "100cro", Vesting: "1h", VestingCoins: "40cro"},
	}
	devnet := NewDevnet(dataDir, chain, DevnetOptions{}, zaptest.NewLogger(t))
	require.NoError(t, devnet.Init(ctx, 26650))

	// 2023-01-01T00:00:00Z + 1h
	log, err := os.ReadFile(filepath.Join(dataDir, "node0/add-genesis-account.log"))
	require.NoError(t, err)
	require.Contains(t, string(log), "--vesting-end-time 1672534800")
	require.Contains(t, string(log), "--vesting-amount 40cro")

	accounts, err := ReadAccounts(dataDir)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, "reserve", accounts[1].Name)
}

func TestInitDevnetGenesisOverrides(t *testing.T) {
	ctx := context.Background()
	dataDir := filepath.Join(t.TempDir(), "ovrchain")
	require.NoError(t, os.Mkdir(dataDir, 0o755))

	chain := testChain(t, "ovrchain", 1)
	chain.Genesis = map[string]any{
		"app_state": map[string]any{
			"staking": map[string]any{
				"params": map[string]any{"unbonding_time": "10s"},
			},
		},
	}
	devnet := NewDevnet(dataDir, chain, DevnetOptions{}, zaptest.NewLogger(t))
	require.NoError(t, devnet.Init(ctx, 26650))

	raw, err := os.ReadFile(filepath.Join(dataDir, "node0/config/genesis.json"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `"unbonding_time":"10s"`)
	// untouched sibling keys survive the merge
	require.Contains(t, string(raw), `"genesis_time"`)
}

type recordingController struct {
	reloads int
}

func (c *recordingController) Reload(context.Context) error           { c.reloads++; return nil }
func (c *recordingController) Start(context.Context, string) error    { return nil }
func (c *recordingController) Stop(context.Context, string) error     { return nil }
func (c *recordingController) Status(context.Context) (string, error) { return "", nil }

func TestCreateNodeAppends(t *testing.T) {
	ctx := context.Background()
	dataRoot := t.TempDir()
	dataDir := filepath.Join(dataRoot, "growchain")
	require.NoError(t, os.Mkdir(dataDir, 0o755))

	chain := testChain(t, "growchain", 2)
	devnet := NewDevnet(dataDir, chain, DevnetOptions{}, zaptest.NewLogger(t))
	require.NoError(t, devnet.Init(ctx, 26650))

	before, err := ini.Load(filepath.Join(dataDir, supervisor.TasksFile))
	require.NoError(t, err)
	beforeCmd := before.Section("program:growchain-node0").Key("command").String()

	handle, err := Open(ctx, dataRoot, "growchain", zaptest.NewLogger(t))
	require.NoError(t, err)
	ctl := &recordingController{}
	handle.SetController(ctl)

	i, err := handle.CreateNode(ctx, CreateNodeOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, i)
	require.Equal(t, 1, ctl.reloads)

	// snapshot gained exactly the new validator with the derived base port
	snapshot, err := ReadConfigSnapshot(dataDir)
	require.NoError(t, err)
	require.Len(t, snapshot.Validators, 3)
	require.Equal(t, 26650+2*10, snapshot.Validators[2].BasePort)
	require.Equal(t, "node2", snapshot.Validators[2].Moniker)

	// one appended process definition, existing ones untouched
	tasks, err := ini.Load(filepath.Join(dataDir, supervisor.TasksFile))
	require.NoError(t, err)
	require.Equal(t, beforeCmd, tasks.Section("program:growchain-node0").Key("command").String())
	added := tasks.Section("program:growchain-node2")
	require.Equal(t, "false", added.Key("autostart").String())

	// the new node shares the frozen genesis
	want, err := os.ReadFile(filepath.Join(dataDir, "genesis.json"))
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dataDir, "node2/config/genesis.json"))
	require.NoError(t, err)
	require.Equal(t, want, got)

	// peers taken from node0, rpc listener on the derived port
	doc, err := tomldoc.LoadTOML(filepath.Join(dataDir, "node2/config/config.toml"))
	require.NoError(t, err)
	require.Equal(t, "tcp://127.0.0.1:26677", doc["rpc"].(map[string]any)["laddr"])
	require.NotEmpty(t, doc["p2p"].(map[string]any)["persistent_peers"])
}

func TestCreateNodeStateSync(t *testing.T) {
	ctx := context.Background()
	dataRoot := t.TempDir()
	dataDir := filepath.Join(dataRoot, "syncchain")
	require.NoError(t, os.Mkdir(dataDir, 0o755))

	chain := testChain(t, "syncchain", 2)
	devnet := NewDevnet(dataDir, chain, DevnetOptions{}, zaptest.NewLogger(t))
	require.NoError(t, devnet.Init(ctx, 26650))

	handle, err := Open(ctx, dataRoot, "syncchain", zaptest.NewLogger(t))
	require.NoError(t, err)
	handle.SetController(&recordingController{})

	i, err := handle.CreateNode(ctx, CreateNodeOptions{StateSync: true})
	require.NoError(t, err)

	doc, err := tomldoc.LoadTOML(filepath.Join(dataDir, "node2/config/config.toml"))
	require.NoError(t, err)
	require.Equal(t, 2, i)
	sync := doc["statesync"].(map[string]any)
	require.Equal(t, true, sync["enable"])
	require.Equal(t, int64(100), sync["trust_height"])
	require.Equal(t, "ABCDEF", sync["trust_hash"])
	require.Equal(t, "tcp://127.0.0.1:26657,tcp://127.0.0.1:26667", sync["rpc_servers"])
}

type stubRelayer struct {
	configWritten bool
	imported      []string
}

func (s *stubRelayer) WriteConfig(_ context.Context, dataRoot string, chains []*config.Chain, _ map[string]any) error {
	s.configWritten = true
	names := make([]string, 0, len(chains))
	for _, c := range chains {
		names = append(names, c.ChainID)
	}
	return os.WriteFile(filepath.Join(dataRoot, "relayer.toml"), []byte(strings.Join(names, ",")), 0o644)
}

func (s *stubRelayer) ImportKey(_ context.Context, _ string, chain *config.Chain, mnemonic string) error {
	s.imported = append(s.imported, chain.ChainID+":"+mnemonic)
	return nil
}

func (s *stubRelayer) ProcessCommand([]*config.Chain) string {
	return "hermes --config relayer.toml start"
}

func TestInitClusterSingleChainNoRelayer(t *testing.T) {
	ctx := context.Background()
	dataRoot := t.TempDir()

	cl := &config.Cluster{Chains: []*config.Chain{testChain(t, "solo", 1)}}
	stub := &stubRelayer{}
	err := InitCluster(ctx, dataRoot, cl, InitOptions{BasePort: 26650, Relayer: stub}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.False(t, stub.configWritten)
	require.Empty(t, stub.imported)
	_, err = os.Stat(filepath.Join(dataRoot, "relayer.toml"))
	require.True(t, os.IsNotExist(err))

	raw, err := os.ReadFile(filepath.Join(dataRoot, supervisor.TasksFile))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "relayer-demo")
}

func TestInitClusterMultiChainWiresRelayer(t *testing.T) {
	ctx := context.Background()
	dataRoot := t.TempDir()

	left := testChain(t, "ibc-0", 1)
	right := testChain(t, "ibc-1", 1)
	left.Accounts = []*config.Account{{Name: "relayer", Coins: "100cro", Mnemonic: "mnemonic words left"}}
	right.Accounts = []*config.Account{{Name: "relayer", Coins: "100cro", Mnemonic: "mnemonic words right"}}

	cl := &config.Cluster{Chains: []*config.Chain{left, right}}
	stub := &stubRelayer{}
	err := InitCluster(ctx, dataRoot, cl, InitOptions{BasePort: 26650, Relayer: stub}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.True(t, stub.configWritten)
	require.Equal(t, []string{
		"ibc-0:mnemonic words left",
		"ibc-1:mnemonic words right",
	}, stub.imported)

	raw, err := os.ReadFile(filepath.Join(dataRoot, supervisor.TasksFile))
	require.NoError(t, err)
	require.Contains(t, string(raw), "program:relayer-demo")
	require.Contains(t, string(raw), "ibc-0/tasks.ini")
	require.Contains(t, string(raw), "ibc-1/tasks.ini")

	// one-shot mnemonic export holds the last imported chain's mnemonic
	env, err := os.ReadFile(filepath.Join(dataRoot, "relayer.env"))
	require.NoError(t, err)
	require.Equal(t, "mnemonic words right", string(env))
}
