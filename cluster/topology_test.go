package cluster

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/stretchr/testify/require"

	"github.com/devnet-labs/devnet/config"
)

func TestPeerAddress(t *testing.T) {
	addr := PeerAddress("deadbeef", "127.0.0.1", 26650)
	require.Equal(t, "tcp://deadbeef@127.0.0.1:26656", addr)
}

func TestExcludeSelf(t *testing.T) {
	a := "tcp://aa@127.0.0.1:26656"
	b := "tcp://bb@127.0.0.1:26666"
	c := "tcp://cc@127.0.0.1:26676"
	all := strings.Join([]string{a, b, c}, ",")

	cases := []struct {
		name  string
		peers string
		self  string
		want  string
	}{
		{"middle", all, b, a + "," + c},
		{"first", all, a, b + "," + c},
		{"last", all, c, a + "," + b},
		{"absent", a + "," + b, c, a + "," + b},
		{"single self", a, a, ""},
		{"empty list", "", a, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ExcludeSelf(tc.peers, tc.self))
		})
	}
}

func TestNodeIDFromKeyFile(t *testing.T) {
	node := NewNodeDirectory(t.TempDir(), 0, &config.Validator{Hostname: "127.0.0.1", BasePort: 26650})
	require.NoError(t, os.MkdirAll(node.ConfigDir(), 0o755))

	key := &p2p.NodeKey{PrivKey: ed25519.GenPrivKey()}
	require.NoError(t, key.SaveAs(filepath.Join(node.ConfigDir(), "node_key.json")))

	id, err := node.NodeID()
	require.NoError(t, err)
	require.Equal(t, string(key.ID()), id)
	require.Len(t, id, 40)
}

func TestRestoreConsensusKey(t *testing.T) {
	node := NewNodeDirectory(t.TempDir(), 0, &config.Validator{})
	require.NoError(t, os.MkdirAll(node.ConfigDir(), 0o755))

	priv := ed25519.GenPrivKeyFromSecret([]byte("fixed seed for key restore"))
	pub := priv.PubKey().(ed25519.PubKey)
	err := node.RestoreConsensusKey(&config.ConsensusKey{
		Pub:  base64.StdEncoding.EncodeToString(pub),
		Priv: base64.StdEncoding.EncodeToString(priv),
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(node.ConfigDir(), "priv_validator_key.json"))
	require.NoError(t, err)

	var restored privval.FilePVKey
	require.NoError(t, cmtjson.Unmarshal(raw, &restored))
	require.Equal(t, pub, restored.PubKey)
	require.Equal(t, ed25519.PrivKey(priv), restored.PrivKey)

	sum := sha256.Sum256(pub)
	require.Equal(t, strings.ToUpper(fmt.Sprintf("%x", sum[:20])), restored.Address.String())
}
