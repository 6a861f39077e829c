package waveweaver

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParsePatch parses a patch from its YAML serialization and clamps every
// field into range. Unknown fields are an error so that typos in hand-edited
// patch files do not silently vanish.
func ParsePatch(data []byte) (Patch, error) {
	var p Patch
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Patch{}, fmt.Errorf("ParsePatch: %w", err)
	}
	p.Clamp()
	return p, nil
}

// MarshalPatch serializes a patch to YAML. Marshaling a patch and parsing it
// back yields an identical value, so files round-trip.
func MarshalPatch(p Patch) ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("MarshalPatch: %w", err)
	}
	return data, nil
}

// LoadPatch reads a patch file from disk. On any error the returned patch is
// the zero value and the caller's current patch should be left untouched.
func LoadPatch(path string) (Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Patch{}, fmt.Errorf("LoadPatch: %w", err)
	}
	return ParsePatch(data)
}

// SavePatch writes the patch to disk as YAML.
func SavePatch(p Patch, path string) error {
	data, err := MarshalPatch(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("SavePatch: %w", err)
	}
	return nil
}
