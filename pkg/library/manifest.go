// Package library manages the datasets a server can load by id: a directory
// of dataset folders, each with a manifest.yaml, plus a built-in reference
// code set.
package library

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Kinds of dataset.
const (
	KindComponents   = "components"
	KindRequirements = "requirements"
)

// ManifestFile is the manifest name inside a dataset folder.
const ManifestFile = "manifest.yaml"

// Manifest describes a dataset: where it comes from and how to read it.
type Manifest struct {
	ID           string `yaml:"id" json:"id"`
	Version      string `yaml:"version" json:"version"`
	Jurisdiction string `yaml:"jurisdiction,omitempty" json:"jurisdiction,omitempty"`
	Kind         string `yaml:"kind,omitempty" json:"kind,omitempty"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
	Source       string `yaml:"source" json:"source"`
	SourceURL    string `yaml:"source_url,omitempty" json:"source_url,omitempty"`
	License      string `yaml:"license" json:"license"`
	DataFile     string `yaml:"data_file" json:"data_file"`
	Encoding     string `yaml:"encoding,omitempty" json:"encoding,omitempty"`
}

// LoadManifest reads and parses a manifest.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return parseManifest(data, path)
}

func parseManifest(data []byte, path string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("manifest %s: missing id", path)
	}
	switch m.Kind {
	case "", KindComponents, KindRequirements:
	default:
		return nil, fmt.Errorf("manifest %s: unknown kind %q", path, m.Kind)
	}
	if m.DataFile == "" {
		m.DataFile = "data.json"
	}
	return &m, nil
}

// WriteManifest writes m as YAML to dir/manifest.yaml.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}
