// Package ports derives every service port a node exposes from its base port.
//
// Each node owns a block of ten consecutive ports starting at its base port,
// so base ports spaced ten apart never collide. All derivations are pure:
// any component (bootstrap, topology, supervision, relayer wiring) recomputes
// the same addresses from the same base port.
package ports

// Offsets within a node's port block. Nine services fit in a stride of ten.
const (
	offsetAPI	= 0
	offsetPprof	= 1
	offsetGRPC	= 2
	offsetGRPCTx	= 3
	offsetGRPCWeb	= 4
	offsetEVMRPC	= 5
	offsetP2P	= 6
	offsetRPC	= 7
	offsetEVMRPCWS	= 8
	offsetSpare	= 9 // reserved
	PortStride	= 10
)

// PortSet is the full set of service ports derived from one base port.
type PortSet struct {
	API      int
	Pprof    int
	GRPC     int
	GRPCTx   int
	GRPCWeb  int
	EVMRPC   int
	P2P      int
	RPC      int
	EVMRPCWS int
}

// FromBase derives the complete port set for a node.
func FromBase(base int) PortSet {
	return PortSet{
		API:      API(base),
		Pprof:    Pprof(base),
		GRPC:     GRPC(base),
		GRPCTx:   GRPCTx(base),
		GRPCWeb:  GRPCWeb(base),
		EVMRPC:   EVMRPC(base),
		P2P:      P2P(base),
		RPC:      RPC(base),
		EVMRPCWS: EVMRPCWS(base),
	}
}

// API is the REST query endpoint port.
func API(base int) int { return base + offsetAPI }

// Pprof is the profiling listener port.
func Pprof(base int) int { return base + offsetPprof }

// GRPC is the gRPC query endpoint port.
func GRPC(base int) int { return base + offsetGRPC }

// GRPCTx is the consensus gRPC listener used only for tx broadcast.
func GRPCTx(base int) int { return base + offsetGRPCTx }

// GRPCWeb is the gRPC-web endpoint port.
func GRPCWeb(base int) int { return base + offsetGRPCWeb }

// EVMRPC is the EVM JSON-RPC port.
func EVMRPC(base int) int { return base + offsetEVMRPC }

// P2P is the peer-to-peer listener port.
func P2P(base int) int { return base + offsetP2P }

// RPC is the consensus RPC port.
func RPC(base int) int { return base + offsetRPC }

// EVMRPCWS is the EVM JSON-RPC websocket port.
func EVMRPCWS(base int) int { return base + offsetEVMRPCWS }
