package cluster

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultImage is recorded in generated compose files when the caller does
// not name one.
const DefaultImage = "ghcr.io/devnet-labs/chain-maind:latest"

// ComposeDoc builds a docker-compose document with one service per node,
// mounting each node's home directory as the chain home.
func ComposeDoc(dataDir, cmd, image string, numNodes int) (map[string]any, error) {
	if image == "" {
		image = DefaultImage
	}
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolving data dir: %w", err)
	}
	services := map[string]any{}
	for i := 0; i < numNodes; i++ {
		services[fmt.Sprintf("node%d", i)] = map[string]any{
			"image":   image,
			"command": cmd + " start",
			"volumes": []string{
				fmt.Sprintf("%s:/.%s:Z", filepath.Join(abs, fmt.Sprintf("node%d", i)), cmd),
			},
		}
	}
	return map[string]any{
		"version":  "3",
		"services": services,
	}, nil
}

// WriteComposeFile writes docker-compose.yml into the chain data directory.
func WriteComposeFile(dataDir, cmd, image string, numNodes int) error {
	doc, err := ComposeDoc(dataDir, cmd, image, numNodes)
	if err != nil {
		return err
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding compose file: %w", err)
	}
	path := filepath.Join(dataDir, "docker-compose.yml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing compose file: %w", err)
	}
	return nil
}
