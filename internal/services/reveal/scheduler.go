// Package reveal exposes message text to the UI as a progressively growing
// prefix.
package reveal

import (
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/caia/concierge/pkg/protocol"
)

const (
	DefaultInterval  = 20 * time.Millisecond
	DefaultIncrement = 1
)

// DisplayMessage is a message as shown to the user. Text is the revealed
// prefix of FullText.
type DisplayMessage struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"createdAt"`
	Agent     string               `json:"agent"`
	Type      protocol.MessageType `json:"type"`
	Data      map[string]any       `json:"data"`
	FullText  string               `json:"fullText"`
	Text      string               `json:"text"`
	FromUser  bool                 `json:"fromUser"`
}

func (m DisplayMessage) Complete() bool {
	return len(m.Text) >= len(m.FullText)
}

// Scheduler advances at most one message per tick, the earliest incomplete one
// in arrival order. Its timer runs only while some message is incomplete.
type Scheduler struct {
	mu        sync.Mutex
	clock     clock.WithDelayedExecution
	interval  time.Duration
	increment int
	messages  []DisplayMessage
	timer     clock.Timer
	// generation invalidates callbacks of timers stopped by Reset.
	generation uint64
	onUpdate   func(DisplayMessage)
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithIncrement(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.increment = n
		}
	}
}

// OnUpdate registers a callback invoked, outside the scheduler's lock, after a
// timer tick advanced a message.
func OnUpdate(fn func(DisplayMessage)) Option {
	return func(s *Scheduler) {
		s.onUpdate = fn
	}
}

func New(clk clock.WithDelayedExecution, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:     clk,
		interval:  DefaultInterval,
		increment: DefaultIncrement,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends a message. Messages whose Text is shorter than FullText are
// revealed over subsequent ticks.
func (s *Scheduler) Add(m DisplayMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.FromUser || !isPrefix(m.Text, m.FullText) {
		m.Text = m.FullText
	}
	s.messages = append(s.messages, m)
	s.ensureTimerLocked()
}

// Tick advances the earliest incomplete message by the configured increment
// and returns it. It reports false when nothing was pending.
func (s *Scheduler) Tick() (DisplayMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickLocked()
}

func (s *Scheduler) tickLocked() (DisplayMessage, bool) {
	for i := range s.messages {
		m := &s.messages[i]
		if m.Complete() {
			continue
		}
		full := []rune(m.FullText)
		n := len([]rune(m.Text)) + s.increment
		if n > len(full) {
			n = len(full)
		}
		m.Text = string(full[:n])
		return *m, true
	}
	return DisplayMessage{}, false
}

// Active reports whether a reveal timer is scheduled.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Messages returns a copy of all messages in arrival order.
func (s *Scheduler) Messages() []DisplayMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DisplayMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Reset stops the timer and forgets all messages.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.messages = nil
}

// Stop halts revealing without discarding messages.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) pendingLocked() bool {
	for _, m := range s.messages {
		if !m.Complete() {
			return true
		}
	}
	return false
}

func (s *Scheduler) ensureTimerLocked() {
	if s.timer != nil || !s.pendingLocked() {
		return
	}
	gen := s.generation
	// The callback may run while the clock holds its own lock, so the tick is
	// handed to a fresh goroutine before touching the clock again.
	s.timer = s.clock.AfterFunc(s.interval, func() { go s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	m, ok := s.tickLocked()
	s.ensureTimerLocked()
	cb := s.onUpdate
	s.mu.Unlock()

	if ok && cb != nil {
		cb(m)
	}
}

func isPrefix(prefix, full string) bool {
	return len(prefix) <= len(full) && full[:len(prefix)] == prefix
}
