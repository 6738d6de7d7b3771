// Package spinner shows progress of long-running training steps on a terminal.
//
// A nil *Spinner is valid and does nothing, so callers can disable progress
// output (quiet mode, redirected stderr) without branching.
package spinner

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a status line until stopped.
type Spinner struct {
	writer io.Writer
	delay  time.Duration
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	active  bool
	message string
	started time.Time
}

// New creates a spinner writing to writer. ctx stops the animation when done.
func New(ctx context.Context, writer io.Writer, message string) *Spinner {
	spinnerCtx, cancel := context.WithCancel(ctx)
	return &Spinner{
		writer:  writer,
		delay:   100 * time.Millisecond,
		ctx:     spinnerCtx,
		cancel:  cancel,
		message: message,
	}
}

// ForTerminal returns a spinner when f is a terminal and quiet is false,
// and nil otherwise.
func ForTerminal(ctx context.Context, f *os.File, message string, quiet bool) *Spinner {
	if quiet || f == nil || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return New(ctx, f, message)
}

// Start begins the animation.
func (s *Spinner) Start() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.started = time.Now()

	s.wg.Add(1)
	go s.run()
}

// Stop ends the animation and clears the status line.
func (s *Spinner) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	fmt.Fprint(s.writer, "\r\033[2K")
}

// IsActive reports whether the animation is running.
func (s *Spinner) IsActive() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// UpdateMessage replaces the status text.
func (s *Spinner) UpdateMessage(message string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Progress returns a callback that reports "label done/total" on the status
// line. It matches the forest fitting progress hook and may be called from
// several goroutines. A nil spinner returns nil.
func (s *Spinner) Progress(label string) func(done, total int) {
	if s == nil {
		return nil
	}
	var mu sync.Mutex
	highest := 0
	return func(done, total int) {
		// completions can arrive out of order
		mu.Lock()
		defer mu.Unlock()
		if done <= highest {
			return
		}
		highest = done
		s.UpdateMessage(fmt.Sprintf("%s %d/%d", label, done, total))
	}
}

func (s *Spinner) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.delay)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			message := s.message
			elapsed := time.Since(s.started).Truncate(time.Second)
			s.mu.Unlock()

			fmt.Fprintf(s.writer, "\r\033[2K%s %s (%s)", frames[i%len(frames)], message, elapsed)
		}
	}
}
