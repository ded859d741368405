package marker

import (
	"sort"
	"sync"
)

// PassedSet holds the ids of markers that already triggered during the
// current downward traversal. Add and Remove report whether they changed the
// set, which is what keeps concurrent visibility sources idempotent.
type PassedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewPassedSet() *PassedSet {
	return &PassedSet{ids: make(map[string]struct{})}
}

// Add inserts id and reports whether it was absent.
func (s *PassedSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present.
func (s *PassedSet) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; !ok {
		return false
	}
	delete(s.ids, id)
	return true
}

func (s *PassedSet) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *PassedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Reset empties the set.
func (s *PassedSet) Reset() {
	s.mu.Lock()
	s.ids = make(map[string]struct{})
	s.mu.Unlock()
}

// IDs returns the members in lexical order.
func (s *PassedSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
