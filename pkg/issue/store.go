package issue

import (
	"sync"
	"time"

	"github.com/mash-protocol/base-station/pkg/wire"
)

// Store holds the admitted issues: every report currently pending,
// dispatched, or in progress, keyed by fingerprint. It does not track
// dispatch state; the dispatcher's queue and active-task table own that.
type Store struct {
	mu     sync.Mutex
	issues map[string]*Issue
}

// NewStore returns an empty issue store.
func NewStore() *Store {
	return &Store{issues: make(map[string]*Issue)}
}

// Admit records a new report if its fingerprint is not already present.
// Reports of an in-flight issue are silently dropped (§4.3): a duplicate
// while the original is still unresolved is not a new issue.
func (s *Store) Admit(kind Kind, coord wire.Position, reporterID string) (*Issue, bool) {
	required, known := RequiredAgents(kind)
	if !known {
		return nil, false
	}

	fp := Fingerprint(kind, coord)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.issues[fp]; exists {
		return nil, false
	}

	iss := &Issue{
		Fingerprint:   fp,
		Kind:          kind,
		Coordinate:    coord,
		RequiredCount: required,
		ReporterID:    reporterID,
		FirstSeen:     time.Now(),
	}
	s.issues[fp] = iss
	return iss, true
}

// Resolve removes an issue once its dispatcher-side work is fully complete,
// reopening its fingerprint for future reports.
func (s *Store) Resolve(fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.issues[fingerprint]; !exists {
		return false
	}
	delete(s.issues, fingerprint)
	return true
}

// Get returns the admitted issue for a fingerprint, if any.
func (s *Store) Get(fingerprint string) (*Issue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iss, ok := s.issues[fingerprint]
	return iss, ok
}

// List returns a snapshot of all currently admitted issues, for the status
// surface. The returned slice is safe for the caller to range over; it does
// not alias the store's internal map.
func (s *Store) List() []*Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Issue, 0, len(s.issues))
	for _, iss := range s.issues {
		out = append(out, iss)
	}
	return out
}
