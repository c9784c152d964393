package slots

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/entrhq/booker/pkg/types"
)

// Key identifies the calendar a slot was seen on.
type Key struct {
	Country   string `json:"country"`
	Consulate string `json:"consulate"`
	Service   string `json:"service"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Country, k.Consulate, k.Service)
}

// registryFile is the on-disk layout: country -> consulate -> service -> dates.
type registryFile struct {
	Version string                                       `json:"version"`
	Slots   map[string]map[string]map[string][]types.Date `json:"slots"`
}

// Registry records free slots seen across runs. A Registry with an empty path
// is memory-only. Safe for concurrent use.
type Registry struct {
	path     string
	slots    map[Key][]types.Date
	mu       sync.RWMutex
	modified bool
}

// NewRegistry creates a registry backed by path, loading it when it exists.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:  path,
		slots: make(map[Key][]types.Date),
	}
	if path == "" {
		return r, nil
	}
	if err := r.Load(); err != nil {
		return nil, fmt.Errorf("failed to load slot registry from %s: %w", path, err)
	}
	return r, nil
}

// Load replaces the in-memory registry with the file contents. A missing file
// yields an empty registry.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.slots = make(map[Key][]types.Date)
			return nil
		}
		return fmt.Errorf("failed to open slot registry: %w", err)
	}
	defer file.Close()

	var data registryFile
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode slot registry: %w", err)
	}

	r.slots = make(map[Key][]types.Date)
	for country, consulates := range data.Slots {
		for consulate, services := range consulates {
			for service, dates := range services {
				r.slots[Key{country, consulate, service}] = normalizeDates(dates)
			}
		}
	}
	r.modified = false
	return nil
}

// Save writes the registry to disk atomically. Memory-only registries are a no-op.
func (r *Registry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path == "" {
		r.modified = false
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0750); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	data := registryFile{
		Version: "1",
		Slots:   make(map[string]map[string]map[string][]types.Date),
	}
	for k, dates := range r.slots {
		if len(dates) == 0 {
			continue
		}
		if data.Slots[k.Country] == nil {
			data.Slots[k.Country] = make(map[string]map[string][]types.Date)
		}
		if data.Slots[k.Country][k.Consulate] == nil {
			data.Slots[k.Country][k.Consulate] = make(map[string][]types.Date)
		}
		data.Slots[k.Country][k.Consulate][k.Service] = dates
	}

	tempPath := r.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode slot registry: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, r.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	r.modified = false
	return nil
}

// Record merges dates into the entry for k.
func (r *Registry) Record(k Key, dates ...types.Date) {
	if len(dates) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	merged := append(append([]types.Date(nil), r.slots[k]...), dates...)
	r.slots[k] = normalizeDates(merged)
	r.modified = true
}

// Remove drops one date from the entry for k, typically after it was booked.
func (r *Registry) Remove(k Key, date types.Date) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dates := r.slots[k]
	for i, d := range dates {
		if d == date {
			r.slots[k] = append(dates[:i:i], dates[i+1:]...)
			r.modified = true
			return
		}
	}
}

// Prune drops every date before today.
func (r *Registry) Prune(today types.Date) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, dates := range r.slots {
		kept := dates[:0:0]
		for _, d := range dates {
			if !d.Before(today) {
				kept = append(kept, d)
			}
		}
		if len(kept) != len(dates) {
			r.modified = true
		}
		if len(kept) == 0 {
			delete(r.slots, k)
			continue
		}
		r.slots[k] = kept
	}
}

// Dates returns a copy of the dates recorded for k, in order.
func (r *Registry) Dates(k Key) []types.Date {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.Date(nil), r.slots[k]...)
}

// Matches reports whether a recorded date for k is acceptable under c.
func (r *Registry) Matches(k Key, c Constraints) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.slots[k] {
		if c.Allows(d) {
			return true
		}
	}
	return false
}

// IsModified returns true if the registry has unsaved changes.
func (r *Registry) IsModified() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modified
}

// Path returns the backing file path.
func (r *Registry) Path() string {
	return r.path
}

func normalizeDates(dates []types.Date) []types.Date {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	out := make([]types.Date, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() || (len(out) > 0 && out[len(out)-1] == d) {
			continue
		}
		out = append(out, d)
	}
	return out
}
