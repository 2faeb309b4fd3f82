package library

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hazyhaar/docudata/pkg/catalog"
)

// BuiltinID is the id of the embedded reference code set.
const BuiltinID = "reference-codes"

//go:embed builtin
var builtinFS embed.FS

// ErrNotFound is returned for an unknown dataset id.
var ErrNotFound = errors.New("dataset not found")

// Dataset is a loaded library entry.
type Dataset struct {
	Manifest *Manifest
	Catalog  *catalog.Catalog
	Builtin  bool
}

// LoadDataset reads the manifest and data file of a dataset folder.
func LoadDataset(dir string, logger *slog.Logger) (*Dataset, error) {
	m, err := LoadManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, m.DataFile))
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", m.ID, err)
	}
	return build(m, data, logger)
}

func loadBuiltin(logger *slog.Logger) (*Dataset, error) {
	raw, err := fs.ReadFile(builtinFS, "builtin/"+ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("read builtin manifest: %w", err)
	}
	m, err := parseManifest(raw, "builtin/"+ManifestFile)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(builtinFS, "builtin/"+m.DataFile)
	if err != nil {
		return nil, fmt.Errorf("read builtin dataset: %w", err)
	}
	d, err := build(m, data, logger)
	if err != nil {
		return nil, err
	}
	d.Builtin = true
	return d, nil
}

func build(m *Manifest, data []byte, logger *slog.Logger) (*Dataset, error) {
	cat, err := catalog.Load(data, catalog.LoadOptions{
		Name:         m.DataFile,
		Encoding:     m.Encoding,
		Jurisdiction: m.Jurisdiction,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", m.ID, err)
	}
	cat.Name = m.ID
	return &Dataset{Manifest: m, Catalog: cat}, nil
}

// Registry holds every library dataset, keyed by manifest id.
type Registry struct {
	mu     sync.RWMutex
	sets   map[string]*Dataset
	dir    string
	logger *slog.Logger
}

// NewRegistry creates an empty registry over dir. An empty dir serves the
// built-in dataset only.
func NewRegistry(dir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sets:   make(map[string]*Dataset),
		dir:    dir,
		logger: logger,
	}
}

// Dir is the library directory.
func (r *Registry) Dir() string { return r.dir }

// Load registers the built-in dataset, then scans the directory. A folder
// whose id matches the built-in one replaces it. A missing directory is not
// an error.
func (r *Registry) Load() error {
	builtin, err := loadBuiltin(r.logger)
	if err != nil {
		return err
	}
	sets := map[string]*Dataset{builtin.Manifest.ID: builtin}

	if r.dir != "" {
		entries, err := os.ReadDir(r.dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read library dir %s: %w", r.dir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(r.dir, entry.Name())
			if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
				continue
			}
			d, err := LoadDataset(dir, r.logger)
			if err != nil {
				return fmt.Errorf("load dataset %s: %w", entry.Name(), err)
			}
			if prev, ok := sets[d.Manifest.ID]; ok && prev.Builtin {
				r.logger.Info("library dataset overrides builtin", "id", d.Manifest.ID)
			}
			sets[d.Manifest.ID] = d
		}
	}

	r.mu.Lock()
	r.sets = sets
	r.mu.Unlock()
	r.logger.Info("library loaded", "dir", r.dir, "datasets", len(sets))
	return nil
}

// Reload reloads every dataset from disk.
func (r *Registry) Reload() error {
	return r.Load()
}

// Get returns a dataset by id.
func (r *Registry) Get(id string) (*Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.sets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return d, nil
}

// Info is the public metadata of a dataset.
type Info struct {
	ID           string `json:"id"`
	Version      string `json:"version"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Description  string `json:"description,omitempty"`
	Source       string `json:"source"`
	SourceURL    string `json:"source_url,omitempty"`
	License      string `json:"license"`
	Records      int    `json:"records"`
	Components   int    `json:"components"`
	Requirements int    `json:"requirements"`
	Builtin      bool   `json:"builtin"`
}

// List returns metadata for every dataset, sorted by id.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.sets))
	for _, d := range r.sets {
		m := d.Manifest
		infos = append(infos, Info{
			ID:           m.ID,
			Version:      m.Version,
			Jurisdiction: m.Jurisdiction,
			Kind:         m.Kind,
			Description:  m.Description,
			Source:       m.Source,
			SourceURL:    m.SourceURL,
			License:      m.License,
			Records:      d.Catalog.Len(),
			Components:   len(d.Catalog.Components()),
			Requirements: len(d.Catalog.Requirements()),
			Builtin:      d.Builtin,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Count returns the number of datasets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets)
}
