// Package tomldoc manipulates hierarchical config documents (TOML, JSON or
// YAML shaped trees decoded into map[string]any). It provides the deep-merge
// and in-place patch primitives the bootstrap pipeline layers chain-wide,
// per-node and hard-required settings with.
package tomldoc

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Doc is a decoded hierarchical config document.
type Doc = map[string]any

// Merge returns a new document combining base and overlay. For keys present in
// both, mapping values merge recursively and anything else (scalars and
// sequences alike) is replaced by the overlay value. Merge never mutates its
// inputs. The overlay always wins: Merge(Merge(a, b), c) applies b then c.
func Merge(base, overlay Doc) Doc {
	out := make(Doc, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, ov := range overlay {
		bm, baseIsMap := out[k].(map[string]any)
		om, overlayIsMap := ov.(map[string]any)
		if baseIsMap && overlayIsMap {
			out[k] = Merge(bm, om)
			continue
		}
		out[k] = ov
	}
	return out
}

// Patch applies patch onto doc in place with the same replacement rule as
// Merge, creating intermediate tables as needed.
func Patch(doc, patch Doc) {
	for k, pv := range patch {
		pm, patchIsMap := pv.(map[string]any)
		if !patchIsMap {
			doc[k] = pv
			continue
		}
		dm, ok := doc[k].(map[string]any)
		if !ok {
			dm = make(Doc)
			doc[k] = dm
		}
		Patch(dm, pm)
	}
}

// FormatValues recursively substitutes "{NAME}" placeholders in every string
// value using the supplied variables. Non-string leaves pass through.
func FormatValues(v any, vars map[string]string) any {
	switch tv := v.(type) {
	case string:
		s := tv
		for name, val := range vars {
			s = strings.ReplaceAll(s, "{"+name+"}", val)
		}
		return s
	case map[string]any:
		out := make(Doc, len(tv))
		for k, vv := range tv {
			out[k] = FormatValues(vv, vars)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, vv := range tv {
			out[i] = FormatValues(vv, vars)
		}
		return out
	default:
		return v
	}
}

// LoadTOML reads and decodes a TOML file into a document.
func LoadTOML(path string) (Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc Doc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling %s: %w", path, err)
	}
	return doc, nil
}

// SaveTOML encodes and writes a document back to a TOML file.
func SaveTOML(path string, doc Doc) error {
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("overwriting %s: %w", path, err)
	}
	return nil
}

// EncodeTOML encodes a document to TOML bytes.
func EncodeTOML(doc Doc) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding toml: %w", err)
	}
	return buf.Bytes(), nil
}
