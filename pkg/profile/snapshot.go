package profile

import (
	"sync"
	"sync/atomic"
)

// Snapshot is an immutable, versioned set of profiles. Readers may hold a
// snapshot for as long as they like; reloads publish a new one.
type Snapshot struct {
	version  uint64
	profiles []UserProfile
	byAlias  map[string]int
}

// NewSnapshot builds an unversioned snapshot; Store.Replace assigns versions.
func NewSnapshot(profiles []UserProfile) *Snapshot {
	s := &Snapshot{
		profiles: append([]UserProfile(nil), profiles...),
		byAlias:  make(map[string]int, len(profiles)),
	}
	for i, p := range s.profiles {
		s.byAlias[p.Alias] = i
	}
	return s
}

// Version increases with every published snapshot.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Len returns the number of profiles.
func (s *Snapshot) Len() int {
	return len(s.profiles)
}

// Get returns the profile for alias.
func (s *Snapshot) Get(alias string) (UserProfile, bool) {
	i, ok := s.byAlias[alias]
	if !ok {
		return UserProfile{}, false
	}
	return s.profiles[i], true
}

// Aliases returns the aliases in load order.
func (s *Snapshot) Aliases() []string {
	out := make([]string, len(s.profiles))
	for i, p := range s.profiles {
		out[i] = p.Alias
	}
	return out
}

// Profiles returns a copy of the profiles in load order.
func (s *Snapshot) Profiles() []UserProfile {
	return append([]UserProfile(nil), s.profiles...)
}

// Diff lists aliases added, removed and changed between two snapshots.
type Diff struct {
	Added   []string
	Removed []string
	Changed []string
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Compare returns the difference from old to s. A nil old counts as empty.
func (s *Snapshot) Compare(old *Snapshot) Diff {
	var d Diff
	if old == nil {
		old = NewSnapshot(nil)
	}
	for _, p := range s.profiles {
		prev, ok := old.Get(p.Alias)
		switch {
		case !ok:
			d.Added = append(d.Added, p.Alias)
		case !prev.Equal(p):
			d.Changed = append(d.Changed, p.Alias)
		}
	}
	for _, p := range old.profiles {
		if _, ok := s.Get(p.Alias); !ok {
			d.Removed = append(d.Removed, p.Alias)
		}
	}
	return d
}

// Store publishes snapshots copy-on-write. The watcher is its only writer;
// the pipeline reads it between users.
type Store struct {
	current atomic.Pointer[Snapshot]

	mu      sync.Mutex
	changed chan struct{}
}

// NewStore creates a store publishing initial as version 1. A nil initial
// publishes an empty snapshot.
func NewStore(initial *Snapshot) *Store {
	s := &Store{changed: make(chan struct{})}
	if initial == nil {
		initial = NewSnapshot(nil)
	}
	s.Replace(initial)
	return s
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Replace publishes next with the following version number and wakes
// waiters on Changed. next must not be published elsewhere.
func (s *Store) Replace(next *Snapshot) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var version uint64 = 1
	if prev := s.current.Load(); prev != nil {
		version = prev.version + 1
	}
	published := &Snapshot{
		version:  version,
		profiles: next.profiles,
		byAlias:  next.byAlias,
	}
	s.current.Store(published)

	close(s.changed)
	s.changed = make(chan struct{})
	return published
}

// Changed returns a channel closed by the next Replace.
func (s *Store) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}
