// Package registry holds the process-wide track state: the current content
// of every generated track plus its live clip binding. It is the single
// source of truth read by both the MIDI exporter and the live-sync layer.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Conceptual-Machines/musicflow/models"
)

var (
	// ErrDuplicateTrack is returned when generating a track name that
	// already exists (update must be used instead).
	ErrDuplicateTrack = errors.New("track already exists")
	// ErrUnknownTrack is returned when operating on a track name that was
	// never generated.
	ErrUnknownTrack = errors.New("unknown track")
)

// SyncState is the per-track binding state used by the live-sync layer.
type SyncState string

const (
	// StateUnbound - no clip has ever been created for this track.
	StateUnbound SyncState = "unbound"
	// StateBound - a clip exists and matches the current revision.
	StateBound SyncState = "bound"
	// StateStale - content revision advanced past the last synced revision.
	StateStale SyncState = "stale"
	// StateBoundManual - automatic note upload was rejected; the track is
	// maintained by manual MIDI import until an explicit re-probe.
	StateBoundManual SyncState = "bound-manual"
)

// ClipBinding records where a track lives in the remote DAW session.
type ClipBinding struct {
	TrackIndex         int
	ClipIndex          int
	LastSyncedRevision int
	State              SyncState
}

// Entry is one registry slot: the owned content plus optional DAW binding.
type Entry struct {
	Content *models.TrackContent
	Binding *ClipBinding
}

// State returns the binding state, deriving Unbound for never-synced tracks.
func (e *Entry) State() SyncState {
	if e.Binding == nil {
		return StateUnbound
	}
	return e.Binding.State
}

// Registry maps track names to their entries. Entries are created on first
// successful generation and removed only by explicit teardown. A mutex
// guards the map because the connection health probe reads status from a
// separate goroutine.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
	}
}

// Has reports whether a track exists.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	return ok
}

// Get returns the entry for a track, or false if it does not exist.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	return e, ok
}

// Content returns a defensive copy of the current content for a track.
func (r *Registry) Content(name string) (*models.TrackContent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.Content.Clone(), true
}

// Put replaces (or creates) the content for a track. A bound binding whose
// synced revision is now behind moves to stale; a manual binding stays
// manual - later syncs must keep skipping the automatic protocol path.
func (r *Registry) Put(content *models.TrackContent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[content.TrackName]
	if !ok {
		r.entries[content.TrackName] = &Entry{Content: content}
		return
	}

	e.Content = content
	if e.Binding != nil && e.Binding.State == StateBound && content.Revision > e.Binding.LastSyncedRevision {
		e.Binding.State = StateStale
	}
}

// Bind sets (or replaces) the clip binding for a track.
func (r *Registry) Bind(name string, binding ClipBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("cannot bind unknown track %q", name)
	}
	e.Binding = &binding
	return nil
}

// List returns all track names in sorted order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NextTrackIndex returns the first DAW track index not used by any binding.
// Indices are assigned in order of first successful sync and stay stable
// for the lifetime of the entry.
func (r *Registry) NextTrackIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	used := make(map[int]bool)
	for _, e := range r.entries {
		if e.Binding != nil {
			used[e.Binding.TrackIndex] = true
		}
	}
	idx := 0
	for used[idx] {
		idx++
	}
	return idx
}

// Remove tears down a track entry. Explicit only - nothing in the normal
// generate/update/sync flow ever removes entries.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Len returns the number of tracked entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
