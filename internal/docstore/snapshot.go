package docstore

import "github.com/kioku-dev/kioku/internal/doc"

// Snapshot is the serializable form of a Store, matching the
// docstore.json layout: id -> full Document.
type Snapshot map[string]doc.Document

// Snapshot captures the store's current documents for persistence.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Snapshot, len(s.documents))
	for id, d := range s.documents {
		out[id] = d
	}
	return out
}

// FromSnapshot rebuilds a Store from a previously captured Snapshot,
// reconstructing the tag reverse index from scratch.
func FromSnapshot(snap Snapshot) *Store {
	s := New()
	for _, d := range snap {
		s.Insert(d)
	}
	return s
}
