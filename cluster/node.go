// Package cluster turns a declarative cluster config into a fully wired set of
// node home directories: it drives the chain binary to initialize each node,
// assembles and freezes the genesis document, computes the peer topology and
// rewrites each node's network and app config onto its derived ports.
package cluster

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"

	"github.com/devnet-labs/devnet/config"
)

// GenesisState tracks the two-phase genesis lifecycle of a node directory.
// During assembly every node links to the shared chain-level genesis so edits
// are visible everywhere; once content is frozen each node gets an independent
// copy and the directory becomes self-contained.
type GenesisState int

const (
	GenesisLinked GenesisState = iota
	GenesisMaterialized
)

// NodeDirectory is the on-disk realization of one validator spec.
type NodeDirectory struct {
	Index int
	Home  string
	Spec  *config.Validator

	genesisState GenesisState
}

// HomeDir returns the i-th node's home directory under a chain data dir.
func HomeDir(dataDir string, i int) string {
	return filepath.Join(dataDir, fmt.Sprintf("node%d", i))
}

func NewNodeDirectory(dataDir string, i int, spec *config.Validator) *NodeDirectory {
	return &NodeDirectory{Index: i, Home: HomeDir(dataDir, i), Spec: spec}
}

func (n *NodeDirectory) ConfigDir() string	{ return filepath.Join(n.Home, "config") }
func (n *NodeDirectory) GenesisPath() string	{ return filepath.Join(n.ConfigDir(), "genesis.json") }
func (n *NodeDirectory) ConfigTOMLPath() string	{ return filepath.Join(n.ConfigDir(), "config.toml") }
func (n *NodeDirectory) AppTOMLPath() string	{ return filepath.Join(n.ConfigDir(), "app.toml") }
func (n *NodeDirectory) ClientTOMLPath() string	{ return filepath.Join(n.ConfigDir(), "client.toml") }
func (n *NodeDirectory) GentxDir() string	{ return filepath.Join(n.ConfigDir(), "gentx") }

func (n *NodeDirectory) GenesisStatus() GenesisState { return n.genesisState }

// LinkGenesis replaces the binary-generated genesis with a symlink to the
// shared chain-level genesis two levels up, and links the shared gentx
// directory into the node's config dir so gentx output lands in one place.
func (n *NodeDirectory) LinkGenesis() error {
	if err := n.LinkSharedGenesis(); err != nil {
		return err
	}
	if err := os.Symlink("../../gentx", n.GentxDir()); err != nil {
		return fmt.Errorf("linking shared gentx dir: %w", err)
	}
	return nil
}

// LinkSharedGenesis links only the genesis file, used when a node joins an
// already-assembled chain and no gentx phase will run.
func (n *NodeDirectory) LinkSharedGenesis() error {
	if err := os.Remove(n.GenesisPath()); err != nil {
		return fmt.Errorf("removing generated genesis: %w", err)
	}
	if err := os.Symlink("../../genesis.json", n.GenesisPath()); err != nil {
		return fmt.Errorf("linking shared genesis: %w", err)
	}
	n.genesisState = GenesisLinked
	return nil
}

// MaterializeGenesis drops the symbolic references and writes an independent
// copy of the final genesis, making the node directory relocatable.
func (n *NodeDirectory) MaterializeGenesis(genesis []byte) error {
	if err := os.Remove(n.GentxDir()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing gentx link: %w", err)
	}
	if err := os.Remove(n.GenesisPath()); err != nil {
		return fmt.Errorf("removing genesis link: %w", err)
	}
	if err := os.WriteFile(n.GenesisPath(), genesis, 0o644); err != nil {
		return fmt.Errorf("writing genesis copy: %w", err)
	}
	n.genesisState = GenesisMaterialized
	return nil
}

// NodeID derives the node's p2p identity from its generated network key.
func (n *NodeDirectory) NodeID() (string, error) {
	key, err := p2p.LoadNodeKey(filepath.Join(n.ConfigDir(), "node_key.json"))
	if err != nil {
		return "", fmt.Errorf("loading node key: %w", err)
	}
	return string(key.ID()), nil
}

// RestoreConsensusKey overwrites the generated validator key file with a
// pre-supplied ed25519 keypair. The recorded address follows the comet rule:
// first 20 bytes of the sha256 of the raw public key, upper-case hex.
func (n *NodeDirectory) RestoreConsensusKey(key *config.ConsensusKey) error {
	pub, err := base64.StdEncoding.DecodeString(key.Pub)
	if err != nil {
		return fmt.Errorf("decoding consensus pubkey: %w", err)
	}
	priv, err := base64.StdEncoding.DecodeString(key.Priv)
	if err != nil {
		return fmt.Errorf("decoding consensus privkey: %w", err)
	}
	pubKey := ed25519.PubKey(pub)
	pvKey := privval.FilePVKey{
		Address: pubKey.Address(),
		PubKey:  pubKey,
		PrivKey: ed25519.PrivKey(priv),
	}
	raw, err := cmtjson.MarshalIndent(pvKey, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding validator key: %w", err)
	}
	path := filepath.Join(n.ConfigDir(), "priv_validator_key.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("writing validator key: %w", err)
	}
	return nil
}
