package cluster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWriteComposeFile(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, WriteComposeFile(dataDir, "chain-maind", "", 2))

	raw, err := os.ReadFile(filepath.Join(dataDir, "docker-compose.yml"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	require.Equal(t, "3", doc["version"])

	services, ok := doc["services"].(map[string]any)
	require.True(t, ok)
	require.Len(t, services, 2)

	node0, ok := services["node0"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, DefaultImage, node0["image"])
	require.Equal(t, "chain-maind start", node0["command"])

	abs, err := filepath.Abs(dataDir)
	require.NoError(t, err)
	volumes, ok := node0["volumes"].([]any)
	require.True(t, ok)
	require.Equal(t, []any{filepath.Join(abs, "node0") + ":/.chain-maind:Z"}, volumes)
}

func TestComposeDocCustomImage(t *testing.T) {
	doc, err := ComposeDoc(t.TempDir(), "simd", "ghcr.io/acme/simd:v1", 1)
	require.NoError(t, err)
	node0 := doc["services"].(map[string]any)["node0"].(map[string]any)
	require.Equal(t, "ghcr.io/acme/simd:v1", node0["image"])
}
