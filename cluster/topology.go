package cluster

import (
	"fmt"
	"strings"

	"github.com/devnet-labs/devnet/ports"
)

// PeerAddress builds a node's public p2p address from its identity and ports.
func PeerAddress(nodeID, hostname string, basePort int) string {
	return fmt.Sprintf("tcp://%s@%s:%d", nodeID, hostname, ports.P2P(basePort))
}

// BuildPeers derives each node's identity and returns the comma-joined union
// of all peer addresses, in validator order.
func BuildPeers(nodes []*NodeDirectory) (string, error) {
	addrs := make([]string, 0, len(nodes))
	for _, node := range nodes {
		id, err := node.NodeID()
		if err != nil {
			return "", fmt.Errorf("node%d: %w", node.Index, err)
		}
		addrs = append(addrs, PeerAddress(id, node.Spec.Hostname, node.Spec.BasePort))
	}
	return strings.Join(addrs, ","), nil
}

// ExcludeSelf strips a node's own address from a peer list. A node must never
// list itself as a peer; addresses of other nodes pass through untouched, and
// a list not containing self is returned as-is.
func ExcludeSelf(peers, self string) string {
	if peers == "" {
		return peers
	}
	items := strings.Split(peers, ",")
	kept := items[:0]
	for _, item := range items {
		if item != self {
			kept = append(kept, item)
		}
	}
	return strings.Join(kept, ",")
}
