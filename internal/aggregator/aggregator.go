// Package aggregator collects worker outcomes for one crawl.
package aggregator

import (
	"sync"
	"time"

	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
	"github.com/JakeFAU/coursefinder-crawler/internal/progress"
)

// Snapshot is a point-in-time view of aggregation state.
type Snapshot struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Parsed    int `json:"parsed"`
	NotFound  int `json:"not_found"`
	Failed    int `json:"failed"`
}

// Fraction is Completed/Total, or 0 before any item is known.
func (s Snapshot) Fraction() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total)
}

// Aggregator is a thread-safe sink for outcomes. One mutex guards the outcome
// list, the counters, and progress emission, so each Add is atomic with
// respect to other workers. Construct one per crawl.
type Aggregator struct {
	mu       sync.Mutex
	outcomes []crawler.Outcome
	counts   Snapshot

	runID   [16]byte
	emitter progress.Emitter
	clock   crawler.Clock
}

// New builds an Aggregator. emitter and clock may be nil.
func New(runID [16]byte, emitter progress.Emitter, clock crawler.Clock) *Aggregator {
	return &Aggregator{
		runID:   runID,
		emitter: emitter,
		clock:   clock,
	}
}

// Add appends outcome in completion order and reports progress against total.
func (a *Aggregator) Add(outcome crawler.Outcome, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.outcomes = append(a.outcomes, outcome)
	a.counts.Completed++
	if total > a.counts.Total {
		a.counts.Total = total
	}
	switch outcome.Status {
	case crawler.OutcomeParsed:
		a.counts.Parsed++
	case crawler.OutcomeNotFound:
		a.counts.NotFound++
	default:
		a.counts.Failed++
	}

	if a.emitter == nil {
		return
	}
	evt := progress.Event{
		RunID:     a.runID,
		TS:        a.now(),
		Stage:     progress.StageItemDone,
		CourseID:  outcome.ID,
		Outcome:   string(outcome.Status),
		Completed: a.counts.Completed,
		Total:     a.counts.Total,
		Dur:       outcome.Duration,
	}
	if outcome.Err != nil {
		evt.Note = outcome.Err.Error()
	}
	a.emitter.Emit(evt)
}

// Outcomes returns a copy of every outcome in completion order.
func (a *Aggregator) Outcomes() []crawler.Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]crawler.Outcome(nil), a.outcomes...)
}

// Completed reports how many outcomes have been added.
func (a *Aggregator) Completed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts.Completed
}

// Snapshot returns the current counters.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts
}

// SetTotal records the expected item count before any item completes.
func (a *Aggregator) SetTotal(total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if total > a.counts.Total {
		a.counts.Total = total
	}
}

func (a *Aggregator) now() time.Time {
	if a.clock == nil {
		return time.Now().UTC()
	}
	return a.clock.Now()
}
