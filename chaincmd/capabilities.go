package chaincmd

import (
	"context"
	"strings"
)

// Capabilities records which optional CLI surfaces the chain binary exposes.
// Probed once at startup so call sites branch on flags instead of re-matching
// help output.
type Capabilities struct {
	// GenesisGrouping is true when genesis commands live under a "genesis"
	// subcommand (sdk >= 0.50: "<bin> genesis add-genesis-account ...").
	GenesisGrouping bool
	// ICAAuth is true when the binary exposes the icaauth tx subcommand.
	ICAAuth bool
}

// ProbeCapabilities detects the binary's CLI surface by invoking help forms
// and text-matching the output. Probe failures are treated as "not supported",
// never as fatal errors: old binaries exit non-zero on unknown subcommands.
func ProbeCapabilities(ctx context.Context, cmd *Command) Capabilities {
	var caps Capabilities

	if out, err := cmd.Run(ctx, "genesis"); err == nil && strings.Contains(string(out), "Available Commands") {
		caps.GenesisGrouping = true
	}
	if out, err := cmd.Run(ctx, "tx", "icaauth", "--help"); err == nil && strings.Contains(string(out), "Available Commands") {
		caps.ICAAuth = true
	}
	return caps
}
