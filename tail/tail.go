// Package tail follows the devnet's log files by polling: node logs under
// every chain directory plus the relayer log at the data root. Tailing is a
// convenience surface, never correctness-relevant; dropped output on shutdown
// is acceptable.
package tail

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is the poll interval for both file discovery and reads.
const DefaultInterval = 500 * time.Millisecond

// Tailer multiplexes the data root's log files onto one writer, each line
// prefixed with the originating file.
type Tailer struct {
	root     string
	interval time.Duration
	logger   *zap.Logger

	mu  sync.Mutex
	out io.Writer
}

func New(root string, out io.Writer, logger *zap.Logger) *Tailer {
	return &Tailer{root: root, out: out, interval: DefaultInterval, logger: logger}
}

// SetInterval shortens the poll interval, used by tests.
func (t *Tailer) SetInterval(d time.Duration) { t.interval = d }

func (t *Tailer) write(label string, line []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s | %s\n", label, line)
}

// discover globs the current set of log files.
func (t *Tailer) discover() ([]string, error) {
	nodeLogs, err := filepath.Glob(filepath.Join(t.root, "*", "node*.log"))
	if err != nil {
		return nil, fmt.Errorf("globbing node logs: %w", err)
	}
	relayerLogs, err := filepath.Glob(filepath.Join(t.root, "relayer-*.log"))
	if err != nil {
		return nil, fmt.Errorf("globbing relayer logs: %w", err)
	}
	return append(nodeLogs, relayerLogs...), nil
}

// Run follows log files until the context is canceled, picking up files that
// appear later. Returns nil on cancellation.
func (t *Tailer) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	seen := map[string]bool{}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		files, err := t.discover()
		if err != nil {
			return err
		}
		for _, file := range files {
			if seen[file] {
				continue
			}
			seen[file] = true
			file := file
			label, err := filepath.Rel(t.root, file)
			if err != nil {
				label = filepath.Base(file)
			}
			t.logger.Debug("tailing log file", zap.String("file", file))
			group.Go(func() error {
				return t.follow(ctx, file, label)
			})
		}

		select {
		case <-ctx.Done():
			err := group.Wait()
			if err != nil && err != context.Canceled {
				return err
			}
			return nil
		case <-ticker.C:
		}
	}
}

// follow streams a single file from its current start, emitting complete
// lines and polling for appended content.
func (t *Tailer) follow(ctx context.Context, path, label string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	var partial bytes.Buffer
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			partial.Write(line[:len(line)-1])
			t.write(label, partial.Bytes())
			partial.Reset()
		} else if len(line) > 0 {
			partial.Write(line)
		}
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.interval):
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}
}
