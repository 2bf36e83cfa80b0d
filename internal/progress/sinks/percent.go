package sinks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/JakeFAU/coursefinder-crawler/internal/progress"
)

// PercentSink writes "NN.NN%\r" to w after each aggregated item, overwriting
// the previous value on a terminal.
type PercentSink struct {
	mu      sync.Mutex
	w       io.Writer
	printed bool
}

// NewPercentSink writes to w, typically os.Stdout.
func NewPercentSink(w io.Writer) *PercentSink {
	return &PercentSink{w: w}
}

// Consume prints one percentage per item event.
func (s *PercentSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		if evt.Stage != progress.StageItemDone {
			continue
		}
		if _, err := fmt.Fprintf(s.w, "%.2f%%\r", evt.Fraction()*100); err != nil {
			return fmt.Errorf("write progress: %w", err)
		}
		s.printed = true
	}
	return nil
}

// Close ends the percentage line so later output starts on a fresh line.
func (s *PercentSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.printed {
		return nil
	}
	s.printed = false
	if _, err := io.WriteString(s.w, "\n"); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}
