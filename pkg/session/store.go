// Package session keeps one independent catalog per client session and runs
// searches and compliance checks against it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/docudata/pkg/catalog"
	"github.com/hazyhaar/docudata/pkg/compliance"
	"github.com/hazyhaar/docudata/pkg/export"
	"github.com/hazyhaar/docudata/pkg/library"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrNoLibrary = errors.New("no dataset library configured")
)

// Session is a snapshot of one session's state.
type Session struct {
	ID       string    `json:"id"`
	Dataset  string    `json:"dataset,omitempty"`
	Created  time.Time `json:"created"`
	LastUsed time.Time `json:"last_used"`
}

type entry struct {
	id      string
	created time.Time
	used    atomic.Int64 // unix nanoseconds
	pinned  atomic.Bool

	// cat is replaced wholesale, never mutated.
	cat atomic.Pointer[catalog.Catalog]
}

func (e *entry) snapshot() Session {
	return Session{
		ID:       e.id,
		Dataset:  e.cat.Load().Name,
		Created:  e.created,
		LastUsed: time.Unix(0, e.used.Load()),
	}
}

// Config wires a Store to its collaborators. All fields are optional.
type Config struct {
	Library *library.Registry
	History *export.History
	Logger  *slog.Logger
}

// Store maps session ids to catalogs. The mutex guards the map only.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	library *library.Registry
	history *export.History
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*entry),
		library:  cfg.Library,
		history:  cfg.History,
		logger:   logger,
		now:      time.Now,
	}
}

// Create opens a session with an empty catalog.
func (s *Store) Create() Session {
	now := s.now()
	e := &entry{id: uuid.NewString(), created: now}
	e.used.Store(now.UnixNano())
	e.cat.Store(catalog.New(""))

	s.mu.Lock()
	s.sessions[e.id] = e
	s.mu.Unlock()
	s.logger.Info("session created", "session", e.id)
	return e.snapshot()
}

// Pin exempts a session from Sweep. Long-lived transports pin their default
// session.
func (s *Store) Pin(id string) error {
	e, err := s.get(id)
	if err != nil {
		return err
	}
	e.pinned.Store(true)
	return nil
}

func (s *Store) get(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	e.used.Store(s.now().UnixNano())
	return e, nil
}

// Get returns the session state.
func (s *Store) Get(id string) (Session, error) {
	e, err := s.get(id)
	if err != nil {
		return Session{}, err
	}
	return e.snapshot(), nil
}

// Catalog returns the session's current catalog.
func (s *Store) Catalog(id string) (*catalog.Catalog, error) {
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return e.cat.Load(), nil
}

// Load replaces the session catalog with a parsed upload. On error the
// previous catalog stays in place.
func (s *Store) Load(id string, data []byte, opts catalog.LoadOptions) (catalog.Stats, error) {
	e, err := s.get(id)
	if err != nil {
		return catalog.Stats{}, err
	}
	if opts.Logger == nil {
		opts.Logger = s.logger
	}
	cat, err := catalog.Load(data, opts)
	if err != nil {
		return catalog.Stats{}, err
	}
	e.cat.Store(cat)
	s.logger.Info("session dataset loaded", "session", id, "dataset", cat.Name, "records", cat.Len())
	return cat.Stats(), nil
}

// LoadDataset replaces the session catalog with a library dataset.
func (s *Store) LoadDataset(id, datasetID string) (catalog.Stats, error) {
	if s.library == nil {
		return catalog.Stats{}, ErrNoLibrary
	}
	e, err := s.get(id)
	if err != nil {
		return catalog.Stats{}, err
	}
	d, err := s.library.Get(datasetID)
	if err != nil {
		return catalog.Stats{}, err
	}
	e.cat.Store(d.Catalog)
	s.logger.Info("session dataset loaded", "session", id, "dataset", datasetID, "records", d.Catalog.Len())
	return d.Catalog.Stats(), nil
}

// Search runs a query against the session catalog. With a history
// configured, the run is recorded; a recording failure is logged, not
// returned.
func (s *Store) Search(id, text string, opts Options) (Response, error) {
	cat, err := s.Catalog(id)
	if err != nil {
		return Response{}, err
	}
	resp := Query(cat, text, opts)
	if s.history != nil {
		if _, err := s.history.Save(text, cat.Name, resp.Results); err != nil {
			s.logger.Warn("record search failed", "session", id, "error", err)
		}
	}
	return resp, nil
}

// Compliance checks the session's components. Requirements come from the
// library dataset named by against; with against empty, the session's own
// requirements are used, falling back to the built-in reference codes.
func (s *Store) Compliance(id, against string, opts compliance.Options) (compliance.Report, error) {
	cat, err := s.Catalog(id)
	if err != nil {
		return compliance.Report{}, err
	}
	reqs := cat.Requirements()
	if against != "" || len(reqs) == 0 {
		if s.library == nil {
			return compliance.Report{}, ErrNoLibrary
		}
		if against == "" {
			against = library.BuiltinID
		}
		d, err := s.library.Get(against)
		if err != nil {
			return compliance.Report{}, err
		}
		reqs = d.Catalog.Requirements()
	}
	return compliance.Check(cat.Components(), reqs, opts), nil
}

// Stats summarizes the session catalog.
func (s *Store) Stats(id string) (catalog.Stats, error) {
	cat, err := s.Catalog(id)
	if err != nil {
		return catalog.Stats{}, err
	}
	return cat.Stats(), nil
}

// Delete closes a session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Len is the number of open sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep closes unpinned sessions unused for longer than idle and returns how
// many it closed.
func (s *Store) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle).UnixNano()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.sessions {
		if !e.pinned.Load() && e.used.Load() < cutoff {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// RunSweeper sweeps idle sessions every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(idle); n > 0 {
				s.logger.Info("idle sessions closed", "count", n, "open", s.Len())
			}
		}
	}
}
