package tail

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTailerFollowsNodeAndRelayerLogs(t *testing.T) {
	root := t.TempDir()
	chainDir := filepath.Join(root, "testchain")
	require.NoError(t, os.Mkdir(chainDir, 0o755))

	nodeLog := filepath.Join(chainDir, "node0.log")
	require.NoError(t, os.WriteFile(nodeLog, []byte("started node\n"), 0o644))
	relayerLog := filepath.Join(root, "relayer-demo.log")
	require.NoError(t, os.WriteFile(relayerLog, []byte("relayer up\n"), 0o644))

	out := &syncBuffer{}
	tailer := New(root, out, zaptest.NewLogger(t))
	tailer.SetInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tailer.Run(ctx) }()

	waitFor(t, func() bool {
		s := out.String()
		return strings.Contains(s, "started node") && strings.Contains(s, "relayer up")
	})

	// appended lines show up too
	f, err := os.OpenFile(nodeLog, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("committed block\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	waitFor(t, func() bool { return strings.Contains(out.String(), "committed block") })

	cancel()
	require.NoError(t, <-done)

	s := out.String()
	require.Contains(t, s, filepath.Join("testchain", "node0.log")+" | started node")
	require.Contains(t, s, "relayer-demo.log | relayer up")
}

func TestTailerPicksUpLateFiles(t *testing.T) {
	root := t.TempDir()
	chainDir := filepath.Join(root, "latechain")
	require.NoError(t, os.Mkdir(chainDir, 0o755))

	out := &syncBuffer{}
	tailer := New(root, out, zaptest.NewLogger(t))
	tailer.SetInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tailer.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	late := filepath.Join(chainDir, "node1.log")
	require.NoError(t, os.WriteFile(late, []byte("late starter\n"), 0o644))

	waitFor(t, func() bool { return strings.Contains(out.String(), "late starter") })

	cancel()
	require.NoError(t, <-done)
}
