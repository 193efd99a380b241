package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

var frames = []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}

// Spinner displays an animated progress indicator. When the output is not
// a terminal it prints each distinct message on its own line instead.
type Spinner struct {
	out     io.Writer
	animate bool

	mu      sync.Mutex
	msg     string
	printed string
	done    chan struct{}
	stopped chan struct{}
}

// NewSpinner creates a Spinner on stderr (not yet running).
func NewSpinner() *Spinner {
	return NewSpinnerTo(os.Stderr, isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
}

// NewSpinnerTo creates a Spinner writing to out.
func NewSpinnerTo(out io.Writer, animate bool) *Spinner {
	return &Spinner{out: out, animate: animate}
}

// Start begins the spinner animation with the given message.
func (s *Spinner) Start(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		s.msg = msg
		return
	}
	s.msg = msg
	if !s.animate {
		s.printLine(msg)
		return
	}
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.run(s.done, s.stopped)
}

// Update changes the spinner message while it's running. It is safe for
// concurrent use.
func (s *Spinner) Update(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msg = msg
	if !s.animate {
		s.printLine(msg)
	}
}

// Stop halts the spinner and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	done, stopped := s.done, s.stopped
	s.done, s.stopped = nil, nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	<-stopped

	// Clear the spinner line
	fmt.Fprintf(s.out, "\r\033[K")
}

// printLine must be called with mu held.
func (s *Spinner) printLine(msg string) {
	if msg == s.printed {
		return
	}
	s.printed = msg
	fmt.Fprintln(s.out, msg)
}

func (s *Spinner) run(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	tick := time.NewTicker(80 * time.Millisecond)
	defer tick.Stop()

	i := 0
	for {
		select {
		case <-done:
			return
		case <-tick.C:
			s.mu.Lock()
			msg := s.msg
			s.mu.Unlock()
			fmt.Fprintf(s.out, "\r\033[K%c %s", frames[i%len(frames)], msg)
			i++
		}
	}
}
