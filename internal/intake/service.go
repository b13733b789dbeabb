// Package intake composes the classifier, the similarity matcher, and the
// registry into the citizen-facing submission flow: classify, then merge into
// an existing open complaint or create a new one. It also fronts the registry
// and ranker for the API layer so handlers depend on one service.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/complaint-engine/internal/classifier"
	"github.com/jonesrussell/complaint-engine/internal/dedup"
	"github.com/jonesrussell/complaint-engine/internal/domain"
	"github.com/jonesrussell/complaint-engine/internal/logging"
	"github.com/jonesrussell/complaint-engine/internal/model"
	"github.com/jonesrussell/complaint-engine/internal/ranking"
	"github.com/jonesrussell/complaint-engine/internal/registry"
	"github.com/jonesrussell/complaint-engine/internal/similarity"
	"github.com/jonesrussell/complaint-engine/internal/telemetry"
)

const (
	// DefaultMinTextLength rejects texts too short to classify usefully.
	DefaultMinTextLength = 10

	// DefaultMaxTextLength bounds submission size.
	DefaultMaxTextLength = 5000
)

// Config bounds accepted submission text, in runes.
type Config struct {
	MinTextLength int
	MaxTextLength int
}

// Service orchestrates complaint intake. Classification and similarity
// scoring are pure and run unlocked; only the decision between merging and
// creating runs under the registry's category lock, so two near-simultaneous
// reports of the same new issue end up as one complaint with two votes.
type Service struct {
	classifier *classifier.Classifier
	matcher    *similarity.Matcher
	registry   *registry.Registry
	ranker     *ranking.Ranker
	recent     *dedup.Tracker
	cfg        Config
	logger     logging.Logger
	telemetry  *telemetry.Provider
	now        func() time.Time
	newID      func() string
}

// New builds the intake service. The recent tracker may be nil; the service
// then always takes the full similarity path.
func New(
	cls *classifier.Classifier,
	matcher *similarity.Matcher,
	reg *registry.Registry,
	ranker *ranking.Ranker,
	recent *dedup.Tracker,
	cfg Config,
	log logging.Logger,
	tp *telemetry.Provider,
) *Service {
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = DefaultMinTextLength
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = DefaultMaxTextLength
	}
	if log == nil {
		log = logging.NewNop()
	}

	return &Service{
		classifier: cls,
		matcher:    matcher,
		registry:   reg,
		ranker:     ranker,
		recent:     recent,
		cfg:        cfg,
		logger:     log,
		telemetry:  tp,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Submit files one citizen report. The text is classified, compared against
// open complaints in its category, and either merged as a vote on an existing
// complaint or created as a new one. A repeat report by a citizen who already
// voted is a benign no-op, reported in the result rather than as an error.
func (s *Service) Submit(ctx context.Context, text, citizenID string) (*domain.SubmissionResult, error) {
	start := time.Now()

	if s.telemetry != nil {
		var span trace.Span
		ctx, span = s.telemetry.StartSpan(ctx, "intake.submit")
		defer span.End()
	}

	text, err := s.validate(text, citizenID)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	cls, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, fmt.Errorf("classify submission: %w", err)
	}

	// Fast path: a recently seen identical text resolves straight to its
	// complaint, skipping the candidate scan. Hits are re-verified against
	// the registry before use.
	if result, ok := s.submitViaRecent(ctx, text, citizenID, cls.Category); ok {
		s.recordOutcome(ctx, result, start)
		return result, nil
	}

	var result *domain.SubmissionResult
	err = s.registry.WithCategoryLock(ctx, cls.Category, func(ctx context.Context) error {
		if s.telemetry != nil {
			var span trace.Span
			ctx, span = s.telemetry.StartSpan(ctx, "intake.dedup_scan",
				attribute.String("category", string(cls.Category)))
			defer span.End()
		}

		candidates, _, listErr := s.registry.List(ctx, registry.Filter{
			Category: cls.Category,
			Statuses: domain.OpenStatuses(),
		})
		if listErr != nil {
			return fmt.Errorf("list dedup candidates: %w", listErr)
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("candidates", len(candidates)))

		if dup := s.matcher.FindDuplicate(ctx, text, candidates); dup != nil {
			merged, mergeErr := s.merge(ctx, dup.ID, text, citizenID)
			if mergeErr != nil {
				return mergeErr
			}
			result = merged
			return nil
		}

		created, createErr := s.create(ctx, text, citizenID, cls)
		if createErr != nil {
			return createErr
		}
		result = created
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	s.recent.Remember(ctx, text, result.ComplaintID)
	s.recordOutcome(ctx, result, start)
	return result, nil
}

// Vote records direct corroboration of a known complaint, without new text.
// A repeat vote reports AlreadyVoted rather than failing.
func (s *Service) Vote(ctx context.Context, complaintID, citizenID string) (*domain.SubmissionResult, error) {
	if strings.TrimSpace(citizenID) == "" {
		return nil, fmt.Errorf("citizen id is required: %w", domain.ErrInvalidInput)
	}

	c, err := s.registry.AddVote(ctx, complaintID, citizenID, "")
	switch {
	case err == nil:
		return submissionResult(c, false, false), nil
	case errors.Is(err, domain.ErrDuplicateVote):
		current, getErr := s.registry.Get(ctx, complaintID)
		if getErr != nil {
			return nil, getErr
		}
		return submissionResult(current, false, true), nil
	default:
		return nil, err
	}
}

// Get returns a single complaint.
func (s *Service) Get(ctx context.Context, id string) (*domain.Complaint, error) {
	return s.registry.Get(ctx, id)
}

// List returns complaints matching the filter and the total match count.
func (s *Service) List(ctx context.Context, f registry.Filter) ([]*domain.Complaint, int, error) {
	return s.registry.List(ctx, f)
}

// ListRanked returns the authority dashboard feed: complaints in the given
// statuses ordered by priority score. An empty filter ranks all open
// complaints; terminal statuses are accepted for archive views.
func (s *Service) ListRanked(ctx context.Context, statuses []domain.Status) ([]ranking.Scored, error) {
	if len(statuses) == 0 {
		statuses = domain.OpenStatuses()
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("unknown status %q: %w", st, domain.ErrInvalidInput)
		}
	}

	complaints, _, err := s.registry.List(ctx, registry.Filter{Statuses: statuses})
	if err != nil {
		return nil, fmt.Errorf("list complaints for ranking: %w", err)
	}

	return s.ranker.RankScored(complaints, s.now()), nil
}

// TransitionStatus moves a complaint along the lifecycle on behalf of an
// authority actor.
func (s *Service) TransitionStatus(ctx context.Context, id string, to domain.Status, actor string) (*domain.Complaint, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", to, domain.ErrInvalidInput)
	}
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("actor is required: %w", domain.ErrInvalidInput)
	}

	return s.registry.ApplyStatusTransition(ctx, id, to, actor)
}

// OverrideCategory replaces a complaint's category with a staff correction.
// Future duplicate detection for matching texts regroups under the new
// category.
func (s *Service) OverrideCategory(ctx context.Context, id string, category domain.Category, actor string) (*domain.Complaint, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("actor is required: %w", domain.ErrInvalidInput)
	}

	return s.registry.OverrideCategory(ctx, id, category, actor)
}

// ReloadModel loads a model artifact from disk and hot-swaps it into the
// classifier. On any failure the active model keeps serving.
func (s *Service) ReloadModel(path string) error {
	artifact, err := model.Load(path)
	if err != nil {
		return err
	}
	return s.classifier.Reload(artifact)
}

// ModelVersion reports the classifier's active model version.
func (s *Service) ModelVersion() string {
	return s.classifier.ModelVersion()
}

// validate trims and bounds the submission text and requires a citizen id.
func (s *Service) validate(text, citizenID string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("complaint text is empty: %w", domain.ErrInvalidInput)
	}

	length := utf8.RuneCountInString(text)
	if length < s.cfg.MinTextLength {
		return "", fmt.Errorf("complaint text shorter than %d characters: %w",
			s.cfg.MinTextLength, domain.ErrInvalidInput)
	}
	if length > s.cfg.MaxTextLength {
		return "", fmt.Errorf("complaint text exceeds %d characters: %w",
			s.cfg.MaxTextLength, domain.ErrInvalidInput)
	}

	if strings.TrimSpace(citizenID) == "" {
		return "", fmt.Errorf("citizen id is required: %w", domain.ErrInvalidInput)
	}

	return text, nil
}

// submitViaRecent resolves the submission through the recent-text cache.
// A hit is only trusted after the complaint proves to exist, to be open, and
// to still live in the submission's category; stale entries are dropped and
// the caller falls back to the full scan.
func (s *Service) submitViaRecent(ctx context.Context, text, citizenID string, category domain.Category) (*domain.SubmissionResult, bool) {
	id, ok := s.recent.Lookup(ctx, text)
	if !ok {
		return nil, false
	}

	c, err := s.registry.Get(ctx, id)
	if err != nil || c.Status.Terminal() || c.Category != category {
		s.recent.Forget(ctx, text)
		return nil, false
	}

	result, err := s.merge(ctx, c.ID, text, citizenID)
	if err != nil {
		s.recent.Forget(ctx, text)
		return nil, false
	}
	return result, true
}

// merge folds the submission into an existing complaint as a vote. A repeat
// vote by the same citizen is benign: the current complaint is returned with
// AlreadyVoted set.
func (s *Service) merge(ctx context.Context, complaintID, text, citizenID string) (*domain.SubmissionResult, error) {
	c, err := s.registry.AddVote(ctx, complaintID, citizenID, text)
	switch {
	case err == nil:
		if s.telemetry != nil {
			s.telemetry.RecordMerge(ctx, c.Category)
		}
		s.logger.Info("submission merged",
			logging.String("complaint_id", c.ID),
			logging.String("category", string(c.Category)),
			logging.Int("votes", c.Votes),
		)
		return submissionResult(c, false, false), nil
	case errors.Is(err, domain.ErrDuplicateVote):
		current, getErr := s.registry.Get(ctx, complaintID)
		if getErr != nil {
			return nil, getErr
		}
		return submissionResult(current, false, true), nil
	default:
		return nil, err
	}
}

// create files a brand-new complaint at the initial status with one vote from
// the submitting citizen.
func (s *Service) create(ctx context.Context, text, citizenID string, cls *domain.ClassificationResult) (*domain.SubmissionResult, error) {
	now := s.now().UTC()
	c := &domain.Complaint{
		ID:                s.newID(),
		Text:              text,
		Category:          cls.Category,
		Confidence:        cls.Confidence,
		LowConfidence:     cls.LowConfidence,
		PredictionSource:  cls.PredictionSource,
		ModelVersion:      cls.ModelVersion,
		Status:            domain.StatusSubmitted,
		Votes:             1,
		ContributingTexts: []string{text},
		Voters:            []string{citizenID},
		History: []domain.Transition{{
			Status: domain.StatusSubmitted,
			Actor:  citizenID,
			At:     now,
		}},
		SubmittedAt: now,
		UpdatedAt:   now,
	}

	if err := s.registry.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("complaint filed",
		logging.String("complaint_id", c.ID),
		logging.String("category", string(c.Category)),
		logging.Bool("low_confidence", c.LowConfidence),
	)
	return submissionResult(c, true, false), nil
}

func (s *Service) recordOutcome(ctx context.Context, result *domain.SubmissionResult, start time.Time) {
	if s.telemetry == nil {
		return
	}
	out := outcome(result)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("outcome", out),
		attribute.String("category", string(result.Category)),
	)
	s.telemetry.RecordSubmission(ctx, out, time.Since(start))
}

func (s *Service) recordFailure(ctx context.Context, err error) {
	if s.telemetry == nil {
		return
	}
	trace.SpanFromContext(ctx).RecordError(err)
	s.telemetry.RecordSubmissionFailure(ctx, errorKind(err))
}

func submissionResult(c *domain.Complaint, isNew, alreadyVoted bool) *domain.SubmissionResult {
	return &domain.SubmissionResult{
		ComplaintID:      c.ID,
		Category:         c.Category,
		Confidence:       c.Confidence,
		LowConfidence:    c.LowConfidence,
		PredictionSource: c.PredictionSource,
		IsNew:            isNew,
		AlreadyVoted:     alreadyVoted,
		Votes:            c.Votes,
	}
}

func outcome(result *domain.SubmissionResult) string {
	switch {
	case result.IsNew:
		return "created"
	case result.AlreadyVoted:
		return "already_voted"
	default:
		return "merged"
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}
