// Package storage provides complaint store implementations. The memory
// store is the default backend and the reference for store semantics;
// the database package provides the PostgreSQL backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/registry"
)

// MemoryStore keeps complaints in process memory. All methods are safe
// for concurrent use. Returned complaints are deep copies, so callers can
// mutate them freely and persist changes through Update.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*domain.Complaint
}

// NewMemoryStore creates an empty in-memory complaint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*domain.Complaint)}
}

// Create stores a new complaint. The identifier must be unused.
func (s *MemoryStore) Create(ctx context.Context, c *domain.Complaint) error {
	if c.ID == "" {
		return fmt.Errorf("empty complaint id: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[c.ID]; ok {
		return fmt.Errorf("complaint %s already exists: %w", c.ID, domain.ErrInvalidInput)
	}
	s.items[c.ID] = c.Clone()
	return nil
}

// Get returns a copy of the complaint with the given identifier.
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("complaint %s: %w", id, domain.ErrNotFound)
	}
	return c.Clone(), nil
}

// Update replaces an existing complaint.
func (s *MemoryStore) Update(ctx context.Context, c *domain.Complaint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[c.ID]; !ok {
		return fmt.Errorf("complaint %s: %w", c.ID, domain.ErrNotFound)
	}
	s.items[c.ID] = c.Clone()
	return nil
}

// List returns complaints matching the filter, ordered by submission time
// and then identifier, plus the total match count before pagination.
func (s *MemoryStore) List(ctx context.Context, f registry.Filter) ([]*domain.Complaint, int, error) {
	s.mu.RLock()
	matched := make([]*domain.Complaint, 0, len(s.items))
	for _, c := range s.items {
		if matchesFilter(c, f) {
			matched = append(matched, c.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].SubmittedAt.Equal(matched[j].SubmittedAt) {
			return matched[i].SubmittedAt.Before(matched[j].SubmittedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	return paginate(matched, f), total, nil
}

func matchesFilter(c *domain.Complaint, f registry.Filter) bool {
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if c.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func paginate(items []*domain.Complaint, f registry.Filter) []*domain.Complaint {
	if f.Page < 1 || f.PerPage < 1 {
		return items
	}
	start := (f.Page - 1) * f.PerPage
	if start >= len(items) {
		return []*domain.Complaint{}
	}
	end := start + f.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
