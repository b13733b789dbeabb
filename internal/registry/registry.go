// Package registry coordinates access to stored complaints. Vote and
// status mutations are serialized per complaint, and intake flows hold a
// category-wide lock while deciding between merging into an existing
// complaint and creating a new one.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/fsm"
	"github.com/jonesrussell/complaint-engine/internal/logging"
	"github.com/jonesrussell/complaint-engine/internal/telemetry"
)

// DefaultLockTimeout bounds how long a caller waits for a complaint or
// category lock before the operation fails with a timeout.
const DefaultLockTimeout = 5 * time.Second

// Filter selects complaints for listing. Zero values match everything.
type Filter struct {
	Category domain.Category // empty matches all categories
	Statuses []domain.Status // empty matches all statuses
	Page     int             // 1-based; 0 disables pagination
	PerPage  int
}

// Store persists complaints. Implementations must return
// domain.ErrNotFound from Get and Update when the identifier is unknown,
// and must order List results by submission time, then identifier.
type Store interface {
	Create(ctx context.Context, c *domain.Complaint) error
	Get(ctx context.Context, id string) (*domain.Complaint, error)
	Update(ctx context.Context, c *domain.Complaint) error
	// List returns the matching page and the total match count before
	// pagination.
	List(ctx context.Context, f Filter) ([]*domain.Complaint, int, error)
}

// Registry wraps a Store with per-complaint and per-category locking and
// applies the status lifecycle rules.
type Registry struct {
	store       Store
	complaints  *keyedLocks
	categories  *keyedLocks
	lockTimeout time.Duration
	logger      logging.Logger
	telemetry   *telemetry.Provider
	now         func() time.Time
}

// New creates a registry over the given store. A non-positive lockTimeout
// falls back to DefaultLockTimeout.
func New(store Store, lockTimeout time.Duration, log logging.Logger, tp *telemetry.Provider) *Registry {
	if log == nil {
		log = logging.NewNop()
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Registry{
		store:       store,
		complaints:  newKeyedLocks(),
		categories:  newKeyedLocks(),
		lockTimeout: lockTimeout,
		logger:      log,
		telemetry:   tp,
		now:         time.Now,
	}
}

// opContext applies the registry lock timeout unless the caller already
// set a deadline.
func (r *Registry) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.lockTimeout)
}

// Create persists a new complaint.
func (r *Registry) Create(ctx context.Context, c *domain.Complaint) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	if err := r.store.Create(ctx, c); err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}

	r.logger.Info("complaint created",
		logging.String("complaint_id", c.ID),
		logging.String("category", string(c.Category)),
	)
	return nil
}

// Get returns a single complaint by identifier.
func (r *Registry) Get(ctx context.Context, id string) (*domain.Complaint, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	return r.store.Get(ctx, id)
}

// List returns complaints matching the filter plus the total match count.
func (r *Registry) List(ctx context.Context, f Filter) ([]*domain.Complaint, int, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	return r.store.List(ctx, f)
}

// AddVote records one citizen's support for a complaint, optionally
// attaching the text of a merged duplicate submission. A repeat vote by
// the same citizen leaves the complaint untouched and returns
// domain.ErrDuplicateVote.
func (r *Registry) AddVote(ctx context.Context, id, citizenID, mergedText string) (*domain.Complaint, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	release, err := r.complaints.acquire(ctx, id)
	if err != nil {
		r.recordTimeout(ctx, "add_vote")
		return nil, err
	}
	defer release()

	c, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.HasVoted(citizenID) {
		if r.telemetry != nil {
			r.telemetry.RecordVote(ctx, true)
		}
		return nil, fmt.Errorf("citizen %s on complaint %s: %w", citizenID, id, domain.ErrDuplicateVote)
	}

	c.Votes++
	c.Voters = append(c.Voters, citizenID)
	if mergedText != "" {
		c.ContributingTexts = append(c.ContributingTexts, mergedText)
	}
	c.UpdatedAt = r.now().UTC()

	if err := r.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update complaint %s: %w", id, err)
	}

	if r.telemetry != nil {
		r.telemetry.RecordVote(ctx, false)
	}
	r.logger.Debug("vote recorded",
		logging.String("complaint_id", id),
		logging.Int("votes", c.Votes),
	)
	return c, nil
}

// ApplyStatusTransition moves a complaint along the lifecycle. Illegal
// moves and moves out of terminal states fail without mutation.
func (r *Registry) ApplyStatusTransition(ctx context.Context, id string, to domain.Status, actor string) (*domain.Complaint, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	release, err := r.complaints.acquire(ctx, id)
	if err != nil {
		r.recordTimeout(ctx, "apply_status_transition")
		return nil, err
	}
	defer release()

	c, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	from := c.Status
	if err := fsm.Apply(c, to, actor, r.now().UTC()); err != nil {
		if r.telemetry != nil {
			r.telemetry.RecordTransitionDenied(ctx, denialReason(err))
		}
		return nil, err
	}

	if err := r.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update complaint %s: %w", id, err)
	}

	if r.telemetry != nil {
		r.telemetry.RecordTransition(ctx, from, to)
	}
	r.logger.Info("status transition applied",
		logging.String("complaint_id", id),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
		logging.String("actor", actor),
	)
	return c, nil
}

// OverrideCategory replaces the assigned category with a staff decision.
// The override is always recorded with full confidence, regardless of the
// complaint's status.
func (r *Registry) OverrideCategory(ctx context.Context, id string, category domain.Category, actor string) (*domain.Complaint, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("unknown category %q: %w", category, domain.ErrInvalidInput)
	}

	ctx, cancel := r.opContext(ctx)
	defer cancel()

	release, err := r.complaints.acquire(ctx, id)
	if err != nil {
		r.recordTimeout(ctx, "override_category")
		return nil, err
	}
	defer release()

	c, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := c.Category
	c.Category = category
	c.Confidence = 1.0
	c.LowConfidence = false
	c.PredictionSource = domain.SourceOverride
	c.UpdatedAt = r.now().UTC()

	if err := r.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update complaint %s: %w", id, err)
	}

	if r.telemetry != nil {
		r.telemetry.RecordCategoryOverride(ctx)
	}
	r.logger.Info("category overridden",
		logging.String("complaint_id", id),
		logging.String("from", string(previous)),
		logging.String("to", string(category)),
		logging.String("actor", actor),
	)
	return c, nil
}

// WithCategoryLock runs fn while holding the lock for the given category.
// Intake uses this to make duplicate detection and complaint creation
// atomic with respect to concurrent submissions in the same category.
func (r *Registry) WithCategoryLock(ctx context.Context, category domain.Category, fn func(ctx context.Context) error) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	release, err := r.categories.acquire(ctx, string(category))
	if err != nil {
		r.recordTimeout(ctx, "category_lock")
		return err
	}
	defer release()

	return fn(ctx)
}

func (r *Registry) recordTimeout(ctx context.Context, op string) {
	if r.telemetry != nil {
		r.telemetry.RecordRegistryTimeout(ctx, op)
	}
	r.logger.Warn("lock acquisition timed out", logging.String("op", op))
}

func denialReason(err error) string {
	if errors.Is(err, domain.ErrTerminalState) {
		return "terminal"
	}
	return "illegal"
}
