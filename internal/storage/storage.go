// Package storage holds the post link overrides and keeps them mirrored
// to a persistence backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hfi/postlink-bot/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrOutOfRange is returned by Set for post numbers outside 1..maxPost.
var ErrOutOfRange = errors.New("post number out of range")

// Persister defines the interface for loading and saving the full mapping
type Persister interface {
	// Load returns the persisted mapping; an absent resource is an empty mapping
	Load(ctx context.Context) (map[int]string, error)

	// Save replaces the persisted mapping with links. It must not retain links.
	Save(ctx context.Context, links map[int]string) error

	// Name identifies the backend in logs and metrics
	Name() string

	// Close releases any resources
	Close() error
}

// Pinger is implemented by persisters that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PersistError reports that a mutation could not be made durable.
type PersistError struct {
	Backend string
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist links to %s: %v", e.Backend, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Store is the in-memory link mapping with write-through persistence.
// A nil persister keeps the mapping in memory only.
type Store struct {
	mu        sync.RWMutex
	links     map[int]string
	persister Persister
	maxPost   int
	logger    zerolog.Logger
}

// Open creates a store seeded from p. Load failures and out-of-range keys
// are logged and leave the store empty or partially seeded; they are never
// returned to the caller.
func Open(ctx context.Context, p Persister, maxPost int, logger zerolog.Logger) *Store {
	s := &Store{
		links:     make(map[int]string),
		persister: p,
		maxPost:   maxPost,
		logger:    logger.With().Str("component", "storage").Str("backend", backendName(p)).Logger(),
	}

	if p == nil {
		s.logger.Info().Msg("link store running in memory only")
		return s
	}

	loaded, err := p.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not load persisted links, starting empty")
		return s
	}

	for n, url := range loaded {
		if !s.inRange(n) {
			s.logger.Warn().Int("post", n).Msg("ignoring persisted link outside valid range")
			continue
		}
		s.links[n] = url
	}
	metrics.LinkOverrides.Set(float64(len(s.links)))
	s.logger.Info().Int("links", len(s.links)).Msg("loaded persisted links")

	return s
}

// Get returns the override registered for post n.
func (s *Store) Get(n int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	url, ok := s.links[n]
	return url, ok
}

// Set registers url for post n and persists the whole mapping before
// returning. If persisting fails the in-memory change is rolled back and a
// *PersistError is returned, so memory and backend never disagree.
func (s *Store) Set(ctx context.Context, n int, url string) error {
	if !s.inRange(n) {
		return fmt.Errorf("%w: %d not in 1..%d", ErrOutOfRange, n, s.maxPost)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.links[n]
	s.links[n] = url

	if s.persister == nil {
		metrics.LinkOverrides.Set(float64(len(s.links)))
		return nil
	}

	start := time.Now()
	err := s.persister.Save(ctx, s.links)
	metrics.RecordPersist(s.persister.Name(), time.Since(start).Seconds(), err)

	if err != nil {
		if existed {
			s.links[n] = prev
		} else {
			delete(s.links, n)
		}
		s.logger.Error().Err(err).Int("post", n).Msg("failed to persist link")
		return &PersistError{Backend: s.persister.Name(), Err: err}
	}

	metrics.LinkOverrides.Set(float64(len(s.links)))
	return nil
}

// Len returns the number of registered overrides.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

// Snapshot returns a copy of the mapping.
func (s *Store) Snapshot() map[int]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]string, len(s.links))
	for n, url := range s.links {
		out[n] = url
	}
	return out
}

// Check reports whether the persistence backend is reachable.
func (s *Store) Check(ctx context.Context) error {
	if p, ok := s.persister.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Backend returns the persister name, or "memory".
func (s *Store) Backend() string {
	return backendName(s.persister)
}

// Close closes the persister
func (s *Store) Close() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Close()
}

func (s *Store) inRange(n int) bool {
	return n >= 1 && n <= s.maxPost
}

func backendName(p Persister) string {
	if p == nil {
		return "memory"
	}
	return p.Name()
}

// sortedKeys returns the post numbers of links in ascending order.
func sortedKeys(links map[int]string) []int {
	keys := make([]int, 0, len(links))
	for n := range links {
		keys = append(keys, n)
	}
	sort.Ints(keys)
	return keys
}
