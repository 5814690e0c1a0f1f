package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/devnet-labs/devnet/internal/tomldoc"
)

// Load reads the declarative cluster config, expands POSIX-style variables from
// the optional dotenv file(s), resolves include fragments and returns the
// ordered cluster. dotenvOverride, when non-empty, is merged over the config's
// own "dotenv" reference. Paths are resolved relative to the config file.
func Load(configPath, dotenvOverride string) (*Cluster, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", configPath, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", configPath, err)
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config %s: top level must be a mapping of chain ids", configPath)
	}
	mapping := root.Content[0]
	baseDir := filepath.Dir(configPath)

	vars, err := loadDotenv(mapping, baseDir, dotenvOverride)
	if err != nil {
		return nil, err
	}

	cluster := &Cluster{}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		valueNode := mapping.Content[i+1]
		switch key {
		case "dotenv":
			continue
		case "relayer":
			var doc map[string]any
			if err := valueNode.Decode(&doc); err != nil {
				return nil, fmt.Errorf("config %s: relayer section: %w", configPath, err)
			}
			cluster.Relayer = expandVars(doc, vars).(map[string]any)
		default:
			chain, err := decodeChain(key, valueNode, baseDir, configPath, vars)
			if err != nil {
				return nil, err
			}
			cluster.Chains = append(cluster.Chains, chain)
		}
	}

	if err := cluster.Validate(); err != nil {
		return nil, err
	}
	return cluster, nil
}

func loadDotenv(mapping *yaml.Node, baseDir, override string) (map[string]string, error) {
	var fromConfig string
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == "dotenv" {
			if err := mapping.Content[i+1].Decode(&fromConfig); err != nil {
				return nil, fmt.Errorf("dotenv reference must be a path: %w", err)
			}
		}
	}

	merged := make(map[string]string)
	for _, ref := range []string{fromConfig, override} {
		if ref == "" {
			continue
		}
		envPath := ref
		if !filepath.IsAbs(envPath) {
			envPath = filepath.Join(baseDir, envPath)
		}
		vals, err := godotenv.Read(envPath)
		if err != nil {
			return nil, fmt.Errorf("dotenv file %s: %w", envPath, err)
		}
		for k, v := range vals {
			merged[k] = v
		}
	}
	return merged, nil
}

func decodeChain(chainID string, node *yaml.Node, baseDir, configPath string, vars map[string]string) (*Chain, error) {
	var doc map[string]any
	if err := node.Decode(&doc); err != nil {
		return nil, fmt.Errorf("chain %s: %w", chainID, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("chain %s: empty definition", chainID)
	}
	doc = expandVars(doc, vars).(map[string]any)

	doc, err := resolveIncludes(doc, baseDir, vars)
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", chainID, err)
	}

	// round-trip through yaml to decode the merged document into the struct
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", chainID, err)
	}
	chain := &Chain{}
	if err := yaml.Unmarshal(raw, chain); err != nil {
		return nil, fmt.Errorf("chain %s: %w", chainID, err)
	}
	chain.ChainID = chainID
	chain.Path = configPath
	return chain, nil
}

// resolveIncludes merges the fragment(s) named by an "include" key under the
// chain document. The including document always wins on conflicts. Fragments
// may themselves include further fragments.
func resolveIncludes(doc map[string]any, baseDir string, vars map[string]string) (map[string]any, error) {
	inc, ok := doc["include"]
	if !ok {
		return doc, nil
	}
	delete(doc, "include")

	var refs []string
	switch v := inc.(type) {
	case string:
		refs = []string{v}
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("include entries must be paths, got %T", e)
			}
			refs = append(refs, s)
		}
	default:
		return nil, fmt.Errorf("include must be a path or list of paths, got %T", inc)
	}

	base := map[string]any{}
	for _, ref := range refs {
		path := ref
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("include %s: %w", ref, err)
		}
		var frag map[string]any
		if err := yaml.Unmarshal(data, &frag); err != nil {
			return nil, fmt.Errorf("include %s: %w", ref, err)
		}
		frag = expandVars(frag, vars).(map[string]any)
		frag, err = resolveIncludes(frag, filepath.Dir(path), vars)
		if err != nil {
			return nil, fmt.Errorf("include %s: %w", ref, err)
		}
		base = tomldoc.Merge(base, frag)
	}
	return tomldoc.Merge(base, doc), nil
}

// expandVars recursively expands $VAR / ${VAR} references in string values.
// Unknown variables expand to the empty string.
func expandVars(v any, vars map[string]string) any {
	switch tv := v.(type) {
	case string:
		return os.Expand(tv, func(name string) string { return vars[name] })
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, vv := range tv {
			out[k] = expandVars(vv, vars)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, vv := range tv {
			out[i] = expandVars(vv, vars)
		}
		return out
	default:
		return v
	}
}
