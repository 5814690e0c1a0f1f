// Package chaincmd wraps the external chain binary. The binary is a black box:
// this package only constructs its command lines, captures combined output and
// parses JSON where the output is structured.
package chaincmd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Command executes a chain binary.
type Command struct {
	bin    string
	logger *zap.Logger
}

// NewCommand wraps the given binary.
func NewCommand(bin string, logger *zap.Logger) *Command {
	return &Command{bin: bin, logger: logger}
}

// Bin returns the wrapped binary name.
func (c *Command) Bin() string { return c.bin }

// Run executes the binary with the given arguments and returns its combined
// stdout/stderr. A non-zero exit is returned as an error carrying the full
// command line and captured output; no retry is ever attempted.
func (c *Command) Run(ctx context.Context, args ...string) ([]byte, error) {
	return c.RunWithInput(ctx, nil, args...)
}

// RunWithInput is Run with bytes supplied on stdin (e.g. a mnemonic for key
// recovery).
func (c *Command) RunWithInput(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", c.bin, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	if c.logger != nil {
		c.logger.Debug("chain command",
			zap.String("bin", c.bin),
			zap.Strings("args", args),
		)
	}
	return out, nil
}

// Flags converts underscore-named parameters into --hyphen-flag value pairs in
// deterministic (sorted) order. Empty values are skipped.
func Flags(kv map[string]string) []string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		if kv[k] == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		name := strings.ReplaceAll(strings.Trim(k, "_"), "_", "-")
		args = append(args, "--"+name, kv[k])
	}
	return args
}

// SplitFlags splits a raw flag string ("--trace --unsafe-cors") into args,
// returning nil for blank input.
func SplitFlags(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
