package telemetry

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/akinizer/akinizer/pkg/engine"
)

// Summary collects the reports of one run for the end-of-run table.
type Summary struct {
	mu      sync.Mutex
	reports []engine.Report
}

// NewSummary creates an empty summary.
func NewSummary() *Summary {
	return &Summary{}
}

// UnitFinished implements engine.Observer.
func (s *Summary) UnitFinished(_ context.Context, r engine.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
}

// Reports returns the collected reports in unit name order.
func (s *Summary) Reports() []engine.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]engine.Report(nil), s.reports...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Unit < out[j].Unit })
	return out
}

// Counts returns the number of reports per outcome.
func (s *Summary) Counts() map[engine.Outcome]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[engine.Outcome]int)
	for _, r := range s.reports {
		counts[r.Outcome]++
	}
	return counts
}

// Failed returns the reports whose dispatch failed.
func (s *Summary) Failed() []engine.Report {
	var failed []engine.Report
	for _, r := range s.Reports() {
		if r.Outcome == engine.OutcomeFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Render writes one line per target followed by the totals.
func (s *Summary) Render(w io.Writer) error {
	reports := s.Reports()
	for _, r := range reports {
		line := fmt.Sprintf("%-40s %-10s %s", r.Unit, r.Outcome, r.Duration.Round(time.Millisecond))
		if r.Err != nil {
			line += "  " + r.Err.Error()
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	counts := s.Counts()
	_, err := fmt.Fprintf(w, "%d targets: %d installed, %d executed, %d satisfied, %d skipped, %d failed\n",
		len(reports),
		counts[engine.OutcomeInstalled],
		counts[engine.OutcomeExecuted],
		counts[engine.OutcomeSatisfied],
		counts[engine.OutcomeSkipped],
		counts[engine.OutcomeFailed],
	)
	return err
}
