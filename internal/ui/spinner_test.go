package ui

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// syncBuffer guards a bytes.Buffer written by the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner_PlainOutputPrintsDistinctLines(t *testing.T) {
	var out syncBuffer
	s := NewSpinnerTo(&out, false)
	s.Start("searching")
	s.Update("searching")
	s.Update("3 pages")
	s.Stop()

	assert.Equal(t, "searching\n3 pages\n", out.String())
}

func TestSpinner_AnimatesAndClears(t *testing.T) {
	var out syncBuffer
	s := NewSpinnerTo(&out, true)
	s.Start("working")
	time.Sleep(200 * time.Millisecond)
	s.Stop()
	s.Stop()

	got := out.String()
	assert.Contains(t, got, "working")
	assert.True(t, strings.HasSuffix(got, "\r\033[K"))

	// nothing is written once stopped
	n := len(got)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, out.String(), n)
}
