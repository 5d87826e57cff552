package leads

import (
	"reflect"
	"sync"
	"time"
)

// Snapshot is the in-memory lead list per company that the dashboard reads from.
// The sync loop replaces it after every pass and mutation paths edit it optimistically.
type Snapshot struct {
	mu        sync.RWMutex
	companies map[string]companySnapshot
}

type companySnapshot struct {
	leads     []Lead
	updatedAt time.Time
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{companies: make(map[string]companySnapshot)}
}

// Get returns a deep copy of the company's leads and whether the company was ever loaded.
func (s *Snapshot) Get(companyID string) ([]Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.companies[companyID]
	if !ok {
		return nil, false
	}
	return cloneAll(snap.leads), true
}

// UpdatedAt reports when the company's list was last replaced or mutated.
func (s *Snapshot) UpdatedAt(companyID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.companies[companyID].updatedAt
}

// Replace swaps the company's whole list.
func (s *Snapshot) Replace(companyID string, leads []Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[companyID] = companySnapshot{leads: cloneAll(leads), updatedAt: time.Now()}
}

// Put replaces the lead with the same id, or prepends it when absent.
// It is a no-op for companies that were never loaded.
func (s *Snapshot) Put(companyID string, lead Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.companies[companyID]
	if !ok {
		return
	}
	snap.leads = ReplaceByID(snap.leads, lead.Clone())
	snap.updatedAt = time.Now()
	s.companies[companyID] = snap
}

// Invalidate forgets the company's list.
func (s *Snapshot) Invalidate(companyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.companies, companyID)
}

// WithOptimisticUpdate applies a change to the company's list, then runs commit.
// When commit fails only the leads that apply touched are reverted, so a Replace that
// landed while commit was running is kept. A lead someone else rewrote meanwhile is left alone.
// Companies that were never loaded are left unloaded; only commit runs for them.
func (s *Snapshot) WithOptimisticUpdate(companyID string, apply func([]Lead) []Lead, commit func() error) error {
	s.mu.Lock()
	prev, loaded := s.companies[companyID]
	var before, after []Lead
	if loaded {
		before = cloneAll(prev.leads)
		after = cloneAll(apply(cloneAll(prev.leads)))
		s.companies[companyID] = companySnapshot{leads: cloneAll(after), updatedAt: time.Now()}
	}
	s.mu.Unlock()

	if err := commit(); err != nil {
		if loaded {
			s.revert(companyID, before, after)
		}
		return err
	}
	return nil
}

// revert undoes the difference between before and after on the company's current list.
func (s *Snapshot) revert(companyID string, before, after []Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.companies[companyID]
	if !ok {
		return
	}
	list := cur.leads

	beforeIdx := indexByID(before)
	afterIdx := indexByID(after)

	for id, i := range afterIdx {
		applied := after[i]
		j, present := findByID(list, id)
		if !present || !reflect.DeepEqual(list[j], applied) {
			continue
		}
		if k, existed := beforeIdx[id]; existed {
			if reflect.DeepEqual(before[k], applied) {
				continue
			}
			list[j] = before[k].Clone()
		} else {
			list = append(list[:j], list[j+1:]...)
		}
	}
	for id, k := range beforeIdx {
		if _, kept := afterIdx[id]; kept {
			continue
		}
		if _, present := findByID(list, id); present {
			continue
		}
		list = insertAt(list, k, before[k].Clone())
	}

	cur.leads = list
	cur.updatedAt = time.Now()
	s.companies[companyID] = cur
}

func indexByID(list []Lead) map[string]int {
	out := make(map[string]int, len(list))
	for i, l := range list {
		out[l.ID] = i
	}
	return out
}

func findByID(list []Lead, id string) (int, bool) {
	for i := range list {
		if list[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func insertAt(list []Lead, i int, lead Lead) []Lead {
	if i > len(list) {
		i = len(list)
	}
	list = append(list, Lead{})
	copy(list[i+1:], list[i:])
	list[i] = lead
	return list
}

// ReplaceByID returns list with lead substituted for the entry of the same id,
// or with lead prepended when no entry matches.
func ReplaceByID(list []Lead, lead Lead) []Lead {
	for i := range list {
		if list[i].ID == lead.ID {
			list[i] = lead
			return list
		}
	}
	return append([]Lead{lead}, list...)
}

// RemoveByID returns list without the lead of the given id.
func RemoveByID(list []Lead, id string) []Lead {
	out := list[:0]
	for _, l := range list {
		if l.ID != id {
			out = append(out, l)
		}
	}
	return out
}

// PrependNew puts fresh leads ahead of existing ones, skipping ids already present.
func PrependNew(existing, fresh []Lead) []Lead {
	seen := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		seen[l.ID] = struct{}{}
	}
	out := make([]Lead, 0, len(existing)+len(fresh))
	for _, l := range fresh {
		if _, dup := seen[l.ID]; dup {
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	return append(out, existing...)
}

func cloneAll(in []Lead) []Lead {
	if in == nil {
		return nil
	}
	out := make([]Lead, len(in))
	for i, l := range in {
		out[i] = l.Clone()
	}
	return out
}
