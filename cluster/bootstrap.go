package cluster

import (
	"fmt"
	"strconv"

	"github.com/devnet-labs/devnet/config"
	"github.com/devnet-labs/devnet/internal/tomldoc"
	"github.com/devnet-labs/devnet/ports"
)

func tcpLoopback(port int) string { return fmt.Sprintf("tcp://127.0.0.1:%d", port) }

// table returns doc[key] as a nested table, creating it when absent.
func table(doc tomldoc.Doc, key string) tomldoc.Doc {
	if sub, ok := doc[key].(map[string]any); ok {
		return sub
	}
	sub := tomldoc.Doc{}
	doc[key] = sub
	return sub
}

// setBoth writes a value under both the legacy underscore and the modern
// hyphen spelling of a key, covering tendermint 0.34 and 0.35+ binaries.
func setBoth(doc tomldoc.Doc, underscore, hyphen string, value any) {
	doc[underscore] = value
	doc[hyphen] = value
}

// RewriteNetworkConfig rewrites a node's config.toml: listeners bound to the
// node's derived ports, fast devnet consensus timeouts, loopback-friendly p2p
// settings and the computed peer list, then any user overrides on top.
// customEdit, when non-nil, runs last (used by statesync node addition).
func RewriteNetworkConfig(path string, basePort int, peers string, overrides tomldoc.Doc, customEdit func(tomldoc.Doc)) error {
	doc, err := tomldoc.LoadTOML(path)
	if err != nil {
		return fmt.Errorf("loading network config: %w", err)
	}

	doc["mode"] = "validator"

	rpc := table(doc, "rpc")
	rpc["laddr"] = tcpLoopback(ports.RPC(basePort))
	setBoth(rpc, "pprof_laddr", "pprof-laddr", fmt.Sprintf("127.0.0.1:%d", ports.Pprof(basePort)))
	setBoth(rpc, "timeout_broadcast_tx_commit", "timeout-broadcast-tx-commit", "30s")
	setBoth(rpc, "grpc_laddr", "grpc-laddr", tcpLoopback(ports.GRPCTx(basePort)))

	p2p := table(doc, "p2p")
	p2p["laddr"] = tcpLoopback(ports.P2P(basePort))
	setBoth(p2p, "persistent_peers", "persistent-peers", peers)
	// every node shares one loopback host
	setBoth(p2p, "addr_book_strict", "addr-book-strict", false)
	setBoth(p2p, "allow_duplicate_ip", "allow-duplicate-ip", true)

	consensus := table(doc, "consensus")
	setBoth(consensus, "timeout_commit", "timeout-commit", "1s")

	tomldoc.Patch(doc, overrides)
	if customEdit != nil {
		customEdit(doc)
	}
	return tomldoc.SaveTOML(path, doc)
}

// RewriteAppConfig rewrites a node's app.toml: query endpoints enabled on the
// derived ports, pruning off, a minimal snapshot policy and a zero minimum gas
// price, with user overrides (after {EVMRPC_PORT} substitution) on top.
func RewriteAppConfig(path string, basePort int, overrides tomldoc.Doc) error {
	defaults := tomldoc.Doc{
		"api": tomldoc.Doc{
			"enable":             true,
			"swagger":            true,
			"enable-unsafe-cors": true,
			"address":            tcpLoopback(ports.API(basePort)),
		},
		"grpc": tomldoc.Doc{
			"address": fmt.Sprintf("127.0.0.1:%d", ports.GRPC(basePort)),
		},
		"pruning": "nothing",
		"state-sync": tomldoc.Doc{
			"snapshot-interval":    int64(5),
			"snapshot-keep-recent": int64(10),
		},
		"minimum-gas-prices": "0basecro",
	}

	expanded, _ := tomldoc.FormatValues(overrides, map[string]string{
		"EVMRPC_PORT":    strconv.Itoa(ports.EVMRPC(basePort)),
		"EVMRPC_PORT_WS": strconv.Itoa(ports.EVMRPCWS(basePort)),
	}).(map[string]any)

	doc, err := tomldoc.LoadTOML(path)
	if err != nil {
		return fmt.Errorf("loading app config: %w", err)
	}
	doc["grpc-web"] = tomldoc.Doc{
		"address": fmt.Sprintf("127.0.0.1:%d", ports.GRPCWeb(basePort)),
	}
	tomldoc.Patch(doc, tomldoc.Merge(defaults, expanded))
	return tomldoc.SaveTOML(path, doc)
}

// WriteClientConfig writes a node's client.toml: unencrypted test keyring,
// JSON output and the node's own RPC endpoint, with per-validator overrides.
func WriteClientConfig(path, chainID string, val *config.Validator, broadcastMode string) error {
	if broadcastMode == "" {
		broadcastMode = "sync"
	}
	doc := tomldoc.Merge(tomldoc.Doc{
		"chain-id":        chainID,
		"keyring-backend": "test",
		"output":          "json",
		"node":            fmt.Sprintf("tcp://%s:%d", val.Hostname, ports.RPC(val.BasePort)),
		"broadcast-mode":  broadcastMode,
	}, val.ClientConfig)
	return tomldoc.SaveTOML(path, doc)
}
