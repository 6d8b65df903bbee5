// Package conversation runs the two-participant chat: a State transition table
// driven by a per-session mailbox goroutine.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/caia/concierge/internal/observability"
	"github.com/caia/concierge/internal/services/dispatch"
	"github.com/caia/concierge/internal/services/events"
	"github.com/caia/concierge/internal/services/reveal"
	"github.com/caia/concierge/pkg/logger"
	"github.com/caia/concierge/pkg/protocol"
)

var ErrSessionClosed = errors.New("session closed")

// Dispatcher sends one turn to a participant.
type Dispatcher interface {
	Dispatch(ctx context.Context, p protocol.Participant, userText string, transcript dispatch.Transcript, opts dispatch.Options) dispatch.Turn
}

type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

type Config struct {
	CustomerID      string
	Timings         Timings
	RevealInterval  time.Duration
	RevealIncrement int
	Clock           clock.WithDelayedExecution
	// NewID generates message ids; uuid when nil.
	NewID func() string
}

type request struct {
	cmd   Command
	query func(*State)
	reply chan error
}

// Session serializes every mutation of one conversation through its mailbox.
type Session struct {
	ID        string
	CreatedAt time.Time

	state      *State
	dispatcher Dispatcher
	publisher  Publisher
	clock      clock.WithDelayedExecution
	reveal     *reveal.Scheduler

	mailbox chan request
	// handles are touched only by the loop goroutine.
	handles map[uint64]clock.Timer
	// turnCtx is cancelled on Reset so that in-flight generator calls of the
	// previous conversation stop early.
	turnCtx    context.Context
	turnCancel context.CancelFunc

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(id string, d Dispatcher, pub Publisher, cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}

	ctx, cancel := context.WithCancel(context.Background())
	turnCtx, turnCancel := context.WithCancel(ctx)

	s := &Session{
		ID:         id,
		CreatedAt:  cfg.Clock.Now(),
		state:      NewState(cfg.CustomerID, cfg.Timings),
		dispatcher: d,
		publisher:  pub,
		clock:      cfg.Clock,
		mailbox:    make(chan request, 64),
		handles:    make(map[uint64]clock.Timer),
		turnCtx:    turnCtx,
		turnCancel: turnCancel,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	if cfg.NewID != nil {
		s.state.WithIDs(cfg.NewID)
	}

	s.reveal = reveal.New(cfg.Clock,
		reveal.WithInterval(cfg.RevealInterval),
		reveal.WithIncrement(cfg.RevealIncrement),
		reveal.OnUpdate(func(m reveal.DisplayMessage) {
			s.publish(events.Event{Type: events.MessageRevealed, MessageID: m.ID, Text: m.Text})
		}),
	)

	go s.run()
	return s
}

// Send applies cmd and returns once its effects have been started.
func (s *Session) Send(ctx context.Context, cmd Command) error {
	return s.do(ctx, request{cmd: cmd})
}

func (s *Session) Snapshot(ctx context.Context) (Snapshot, []reveal.DisplayMessage, error) {
	var snap Snapshot
	if err := s.do(ctx, request{query: func(st *State) { snap = st.Snapshot() }}); err != nil {
		return Snapshot{}, nil, err
	}
	return snap, s.reveal.Messages(), nil
}

// Close stops the loop, cancels pending timers and in-flight turns.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) do(ctx context.Context, req request) error {
	req.reply = make(chan error, 1)
	select {
	case s.mailbox <- req:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post enqueues a command from a timer or dispatch goroutine. It must never be
// called from the loop itself.
func (s *Session) post(cmd Command) {
	select {
	case s.mailbox <- request{cmd: cmd}:
	case <-s.done:
	}
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.stopScheduled()
			s.reveal.Stop()
			return
		case req := <-s.mailbox:
			var err error
			if req.query != nil {
				req.query(s.state)
			} else {
				err = s.handle(req.cmd)
			}
			if req.reply != nil {
				req.reply <- err
			}
		}
	}
}

func (s *Session) handle(cmd Command) error {
	switch c := cmd.(type) {
	case Reset:
		// Timers and reveal ticks of the old conversation stop before its
		// state is cleared.
		s.stopScheduled()
		s.reveal.Reset()
		s.turnCancel()
		s.turnCtx, s.turnCancel = context.WithCancel(s.ctx)
	case TimerFired:
		delete(s.handles, c.Token)
	}

	effects, err := s.state.Apply(cmd)
	if err != nil {
		return err
	}
	for _, e := range effects {
		s.execute(e)
	}
	return nil
}

func (s *Session) stopScheduled() {
	for token, h := range s.handles {
		h.Stop()
		delete(s.handles, token)
	}
}

func (s *Session) execute(e Effect) {
	switch e := e.(type) {
	case EmitUserMessage:
		dm := reveal.DisplayMessage{
			ID:        e.ID,
			CreatedAt: s.clock.Now(),
			Agent:     string(e.Participant),
			Type:      protocol.TypeMessage,
			Data:      map[string]any{},
			FullText:  e.Text,
			Text:      e.Text,
			FromUser:  true,
		}
		s.reveal.Add(dm)
		s.publish(events.Event{Type: events.MessageCreated, Message: &dm})

	case EmitMessage:
		m := e.Envelope.Message
		dm := reveal.DisplayMessage{
			ID:        e.Envelope.ID,
			CreatedAt: s.clock.Now(),
			Agent:     m.Agent,
			Type:      m.Type,
			Data:      m.Data,
			FullText:  m.Text,
		}
		s.reveal.Add(dm)
		s.publish(events.Event{Type: events.MessageCreated, Message: &dm})

	case StartDispatch:
		s.publish(events.Event{Type: events.DispatchStarted, Participant: string(e.Participant), Hidden: e.Options.Hidden})
		ctx := s.turnCtx
		go func() {
			turn := s.dispatcher.Dispatch(ctx, e.Participant, e.Text, e.Transcript, e.Options)
			s.post(TurnCompleted{Generation: e.Generation, Seq: e.Seq, Turn: turn})
		}()

	case DispatchFinished:
		ev := events.Event{Type: events.DispatchFinished, Participant: string(e.Participant)}
		if e.Err != nil {
			ev.Error = e.Err.Error()
		}
		s.publish(ev)

	case ScheduleTimer:
		token := e.Token
		// The fake clock used in tests may run callbacks under its own lock,
		// so the callback only hands off to a goroutine.
		s.handles[token] = s.clock.AfterFunc(e.Delay, func() {
			go s.post(TimerFired{Token: token})
		})

	case StatusChanged:
		if e.Status != e.Previous {
			observability.PaymentTransitions.WithLabelValues(string(e.Status)).Inc()
			logger.Info(logger.CONVERSATION, "Session %s payment status %s -> %s", s.ID, e.Previous, e.Status)
		}
		s.publish(events.Event{Type: events.StatusChanged, Status: string(e.Status), ActiveAgent: string(e.Active)})

	case Suppressed:
		observability.SuppressedMessages.WithLabelValues(string(e.Envelope.Message.Type)).Inc()
		logger.Warn(logger.CONVERSATION, "Session %s dropped %s message: %s", s.ID, e.Envelope.Message.Type, e.Reason)

	case HandoffStarted:
		observability.HandoffsTotal.Inc()
		logger.Info(logger.CONVERSATION, "Session %s handing order %s to payment", s.ID, e.Order.OrderID)

	case Cleared:
		s.publish(events.Event{Type: events.SessionReset})
	}
}

func (s *Session) publish(ev events.Event) {
	if s.publisher == nil {
		return
	}
	ev.SessionID = s.ID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.clock.Now()
	}
	if err := s.publisher.Publish(s.ctx, ev); err != nil {
		logger.Warn(logger.CONVERSATION, "Failed to publish %s for session %s: %v", ev.Type, s.ID, err)
	}
}

// Manager owns the live sessions of this process.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	dispatcher Dispatcher
	publisher  Publisher
	config     Config
	customers  dispatch.CustomerLookup
}

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownCustomer = errors.New("unknown customer")
)

func NewManager(d Dispatcher, pub Publisher, customers dispatch.CustomerLookup, cfg Config) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		dispatcher: d,
		publisher:  pub,
		config:     cfg,
		customers:  customers,
	}
}

// Create starts a session for customerID, or the configured default customer
// when it is empty.
func (m *Manager) Create(customerID string) (*Session, error) {
	if customerID == "" {
		customerID = m.config.CustomerID
	}
	if m.customers != nil {
		if _, ok := m.customers.GetCustomer(customerID); !ok {
			return nil, ErrUnknownCustomer
		}
	}

	cfg := m.config
	cfg.CustomerID = customerID
	s := NewSession(uuid.New().String(), m.dispatcher, m.publisher, cfg)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	observability.ActiveSessions.Inc()
	logger.Info(logger.CONVERSATION, "Created session %s for customer %s", s.ID, customerID)
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	observability.ActiveSessions.Dec()
	return nil
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		observability.ActiveSessions.Dec()
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
