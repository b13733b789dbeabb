package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/registry"
	"github.com/jonesrussell/complaint-engine/internal/storage"
)

func newComplaint(id string, category domain.Category, status domain.Status, submittedAt time.Time) *domain.Complaint {
	return &domain.Complaint{
		ID:          id,
		Text:        "test complaint text",
		Category:    category,
		Status:      status,
		Votes:       1,
		Voters:      []string{"citizen-1"},
		SubmittedAt: submittedAt,
		UpdatedAt:   submittedAt,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	submitted := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	c := newComplaint("c-1", domain.CategoryWater, domain.StatusSubmitted, submitted)
	if err := store.Create(ctx, c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Get(ctx, "c-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != "c-1" || got.Category != domain.CategoryWater || got.Votes != 1 {
		t.Errorf("Get() = %+v, want stored complaint", got)
	}
}

func TestMemoryStore_CopiesIsolateCallers(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	submitted := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	c := newComplaint("c-1", domain.CategoryWater, domain.StatusSubmitted, submitted)
	if err := store.Create(ctx, c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Mutating the input after Create must not touch the stored copy.
	c.Votes = 99
	c.Voters = append(c.Voters, "citizen-2")

	got, err := store.Get(ctx, "c-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Votes != 1 || len(got.Voters) != 1 {
		t.Errorf("stored complaint mutated through input: votes=%d voters=%d", got.Votes, len(got.Voters))
	}

	// Mutating a Get result must not touch the stored copy either.
	got.Status = domain.StatusResolved
	again, err := store.Get(ctx, "c-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if again.Status != domain.StatusSubmitted {
		t.Errorf("stored complaint mutated through Get result: status=%s", again.Status)
	}
}

func TestMemoryStore_CreateRejectsDuplicatesAndEmptyIDs(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	submitted := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	c := newComplaint("c-1", domain.CategoryRoad, domain.StatusSubmitted, submitted)
	if err := store.Create(ctx, c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.Create(ctx, c); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Create(duplicate) error = %v, want ErrInvalidInput", err)
	}
	if err := store.Create(ctx, newComplaint("", domain.CategoryRoad, domain.StatusSubmitted, submitted)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Create(empty id) error = %v, want ErrInvalidInput", err)
	}
}

func TestMemoryStore_GetAndUpdateUnknownID(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	c := newComplaint("missing", domain.CategoryRoad, domain.StatusSubmitted, time.Now().UTC())
	if err := store.Update(ctx, c); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ListFiltersAndOrders(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	seed := []*domain.Complaint{
		newComplaint("c-3", domain.CategoryWater, domain.StatusSubmitted, base.Add(2*time.Hour)),
		newComplaint("c-1", domain.CategoryWater, domain.StatusResolved, base),
		newComplaint("c-2", domain.CategoryRoad, domain.StatusSubmitted, base.Add(time.Hour)),
		newComplaint("c-4", domain.CategoryWater, domain.StatusUnderReview, base.Add(3*time.Hour)),
	}
	for _, c := range seed {
		if err := store.Create(ctx, c); err != nil {
			t.Fatalf("Create(%s) error = %v", c.ID, err)
		}
	}

	tests := []struct {
		name      string
		filter    registry.Filter
		wantIDs   []string
		wantTotal int
	}{
		{
			name:      "all",
			filter:    registry.Filter{},
			wantIDs:   []string{"c-1", "c-2", "c-3", "c-4"},
			wantTotal: 4,
		},
		{
			name:      "by category",
			filter:    registry.Filter{Category: domain.CategoryWater},
			wantIDs:   []string{"c-1", "c-3", "c-4"},
			wantTotal: 3,
		},
		{
			name: "by category and open statuses",
			filter: registry.Filter{
				Category: domain.CategoryWater,
				Statuses: domain.OpenStatuses(),
			},
			wantIDs:   []string{"c-3", "c-4"},
			wantTotal: 2,
		},
		{
			name:      "by status only",
			filter:    registry.Filter{Statuses: []domain.Status{domain.StatusSubmitted}},
			wantIDs:   []string{"c-2", "c-3"},
			wantTotal: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("List() total = %d, want %d", total, tt.wantTotal)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("List() returned %d complaints, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("List()[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestMemoryStore_ListPaginates(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	ids := []string{"c-1", "c-2", "c-3", "c-4", "c-5"}
	for i, id := range ids {
		c := newComplaint(id, domain.CategoryGarbage, domain.StatusSubmitted, base.Add(time.Duration(i)*time.Minute))
		if err := store.Create(ctx, c); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	got, total, err := store.List(ctx, registry.Filter{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 {
		t.Errorf("List() total = %d, want 5", total)
	}
	if len(got) != 2 || got[0].ID != "c-3" || got[1].ID != "c-4" {
		t.Errorf("List() page 2 = %v, want [c-3, c-4]", idsOf(got))
	}

	// A page past the end is empty but keeps the true total.
	got, total, err = store.List(ctx, registry.Filter{Page: 9, PerPage: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 0 || total != 5 {
		t.Errorf("List() past end = %d items, total %d; want 0 items, total 5", len(got), total)
	}
}

func idsOf(cs []*domain.Complaint) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
