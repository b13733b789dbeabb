//nolint:testpackage // Testing internal processor requires same package access
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jonesrussell/complaint-engine/internal/domain"
)

// scriptedIntake returns canned results keyed by citizen id and records
// every submission it sees.
type scriptedIntake struct {
	mu      sync.Mutex
	seen    []Submission
	results map[string]*domain.SubmissionResult
	errs    map[string]error
	entered chan struct{} // one send per Submit call, when set
	block   chan struct{} // Submit blocks until closed, when set
}

func (s *scriptedIntake) Submit(_ context.Context, text, citizenID string) (*domain.SubmissionResult, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	s.seen = append(s.seen, Submission{Text: text, CitizenID: citizenID})
	s.mu.Unlock()

	if err, ok := s.errs[citizenID]; ok {
		return nil, err
	}
	if r, ok := s.results[citizenID]; ok {
		return r, nil
	}
	return &domain.SubmissionResult{ComplaintID: "c-default", IsNew: true, Votes: 1}, nil
}

func (s *scriptedIntake) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func TestBatchSubmitter_SubmitsEveryItem(t *testing.T) {
	svc := &scriptedIntake{}
	b := NewBatchSubmitter(svc, BatchConfig{Concurrency: 3, SubmitRPS: 1000}, nil, nil)

	subs := make([]Submission, 20)
	for i := range subs {
		subs[i] = Submission{
			Text:      fmt.Sprintf("pothole on elm street near number %d", i),
			CitizenID: fmt.Sprintf("citizen-%d", i),
		}
	}

	results, stats := b.Process(context.Background(), subs)

	if len(results) != len(subs) {
		t.Fatalf("results = %d, want %d", len(results), len(subs))
	}
	if svc.count() != len(subs) {
		t.Errorf("intake saw %d submissions, want %d", svc.count(), len(subs))
	}
	if stats.Total != 20 || stats.Created != 20 {
		t.Errorf("stats = %+v, want 20 total and 20 created", stats)
	}
	if stats.Failed != 0 || stats.Skipped != 0 {
		t.Errorf("stats = %+v, want no failures or skips", stats)
	}
}

func TestBatchSubmitter_CountsOutcomes(t *testing.T) {
	svc := &scriptedIntake{
		results: map[string]*domain.SubmissionResult{
			"creator": {ComplaintID: "c-1", IsNew: true, Votes: 1},
			"merger":  {ComplaintID: "c-1", Votes: 2},
			"repeat":  {ComplaintID: "c-1", AlreadyVoted: true, Votes: 2},
		},
		errs: map[string]error{
			"rejected": domain.ErrInvalidInput,
		},
	}
	b := NewBatchSubmitter(svc, BatchConfig{Concurrency: 2, SubmitRPS: 1000}, nil, nil)

	subs := []Submission{
		{Text: "water main break on first avenue", CitizenID: "creator"},
		{Text: "water main broke open on first avenue", CitizenID: "merger"},
		{Text: "water main break on first avenue", CitizenID: "repeat"},
		{Text: "no", CitizenID: "rejected"},
	}

	_, stats := b.Process(context.Background(), subs)

	if stats.Created != 1 || stats.Merged != 1 || stats.Repeats != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want created/merged/repeats/failed all 1", stats)
	}
	if stats.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", stats.Skipped)
	}
}

func TestBatchSubmitter_EmptyBatch(t *testing.T) {
	b := NewBatchSubmitter(&scriptedIntake{}, BatchConfig{}, nil, nil)

	results, stats := b.Process(context.Background(), nil)

	if len(results) != 0 {
		t.Errorf("results = %d, want none", len(results))
	}
	if stats.Total != 0 {
		t.Errorf("Total = %d, want 0", stats.Total)
	}
}

func TestBatchSubmitter_CancelCountsSkipped(t *testing.T) {
	svc := &scriptedIntake{
		entered: make(chan struct{}, 3),
		block:   make(chan struct{}),
	}
	b := NewBatchSubmitter(svc, BatchConfig{Concurrency: 1, SubmitRPS: 1000}, nil, nil)

	subs := []Submission{
		{Text: "streetlight out on cedar and third", CitizenID: "a"},
		{Text: "streetlight out on cedar and fourth", CitizenID: "b"},
		{Text: "streetlight out on cedar and fifth", CitizenID: "c"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	var stats BatchStats
	done := make(chan struct{})
	go func() {
		_, stats = b.Process(ctx, subs)
		close(done)
	}()

	// The single worker is inside the first Submit. Cancel, then let it
	// finish; the remaining two jobs must be skipped, not submitted.
	<-svc.entered
	cancel()
	close(svc.block)
	<-done

	if svc.count() != 1 {
		t.Fatalf("intake saw %d submissions, want 1", svc.count())
	}
	if stats.Created != 1 || stats.Skipped != 2 {
		t.Errorf("stats = %+v, want 1 created and 2 skipped", stats)
	}
}

func TestReadSubmissions_ParsesLines(t *testing.T) {
	input := `{"text":"pothole on main street downtown","citizen_id":"a"}

{"text":"street light flickering on oak avenue","citizen_id":"b"}
`
	subs, err := ReadSubmissions(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadSubmissions() error = %v", err)
	}

	if len(subs) != 2 {
		t.Fatalf("parsed %d submissions, want 2", len(subs))
	}
	if subs[0].CitizenID != "a" || subs[1].CitizenID != "b" {
		t.Errorf("citizen ids = %q, %q", subs[0].CitizenID, subs[1].CitizenID)
	}
	if subs[1].Text != "street light flickering on oak avenue" {
		t.Errorf("text = %q", subs[1].Text)
	}
}

func TestReadSubmissions_RejectsMalformedLine(t *testing.T) {
	input := "{\"text\":\"fine here\",\"citizen_id\":\"a\"}\nnot json at all\n"

	_, err := ReadSubmissions(strings.NewReader(input))
	if err == nil {
		t.Fatal("ReadSubmissions() accepted a malformed line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q does not name the offending line", err)
	}
}

func TestBatchSubmitter_ImportFile(t *testing.T) {
	svc := &scriptedIntake{}
	b := NewBatchSubmitter(svc, BatchConfig{Concurrency: 2, SubmitRPS: 1000}, nil, nil)

	path := filepath.Join(t.TempDir(), "drop.jsonl")
	lines := `{"text":"garbage not collected on birch street","citizen_id":"alice"}
{"text":"garbage bins overflowing on pine avenue","citizen_id":"bob"}
`
	if err := os.WriteFile(path, []byte(lines), 0o600); err != nil {
		t.Fatal(err)
	}

	stats, err := b.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if stats.Total != 2 || stats.Created != 2 {
		t.Errorf("stats = %+v, want 2 total and 2 created", stats)
	}

	if _, err := b.ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("ImportFile() with a missing file did not fail")
	}
}
