package conversation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caia/concierge/internal/services/dispatch"
	"github.com/caia/concierge/pkg/protocol"
)

var (
	ErrEmptyInput      = errors.New("input is empty")
	ErrInputGated      = errors.New("free text input is not accepted while a payment step is pending")
	ErrParticipantBusy = errors.New("participant is still answering the previous turn")
	ErrNotAwaitingCard = errors.New("no card action is expected in the current payment status")
)

const (
	ConfirmationText  = "Your order has been placed and will be delivered within 2-3 business days."
	EstimatedDelivery = "2-3 business days"
)

type Timings struct {
	HandoffDelay      time.Duration
	ResultDelay       time.Duration
	IdleDelay         time.Duration
	ConfirmationDelay time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		HandoffDelay:      120 * time.Millisecond,
		ResultDelay:       2 * time.Second,
		IdleDelay:         500 * time.Millisecond,
		ConfirmationDelay: 1200 * time.Millisecond,
	}
}

type issuedTurn struct {
	participant protocol.Participant
	base        int
}

type pendingDispatch struct {
	participant protocol.Participant
	text        string
	opts        dispatch.Options
}

type timerTask struct {
	kind    TimerKind
	text    string
	orderID string
}

// State is the conversation's transition table. It is owned by a single
// goroutine; Apply mutates it and returns the effects to carry out.
type State struct {
	Status       PaymentStatus
	Active       protocol.Participant
	CustomerID   string
	Transcript   dispatch.Transcript
	PendingOrder *protocol.HandoffPayload
	// Generation increases on Reset. Completions and timers from an older
	// generation are ignored.
	Generation uint64

	timings Timings
	newID   func() string

	nextSeq    uint64
	deliverSeq uint64
	issued     map[uint64]issuedTurn
	completed  map[uint64]dispatch.Turn
	busy       map[protocol.Participant]bool
	queued     []pendingDispatch
	// deferred holds a PAYMENT_RESULT waiting for its timer. Later turns are
	// held back until it is emitted.
	deferred *Envelope

	nextToken uint64
	timers    map[uint64]timerTask
	seen      map[string]struct{}
}

func NewState(customerID string, timings Timings) *State {
	s := &State{
		CustomerID: customerID,
		timings:    timings,
		newID:      func() string { return uuid.New().String() },
	}
	s.clear()
	return s
}

// WithIDs replaces the message id generator.
func (s *State) WithIDs(fn func() string) *State {
	s.newID = fn
	return s
}

func (s *State) clear() {
	s.Status = StatusIdle
	s.Active = protocol.Shopping
	s.Transcript = dispatch.Transcript{}
	s.PendingOrder = nil
	s.nextSeq = 0
	s.deliverSeq = 0
	s.issued = map[uint64]issuedTurn{}
	s.completed = map[uint64]dispatch.Turn{}
	s.busy = map[protocol.Participant]bool{}
	s.queued = nil
	s.deferred = nil
	s.timers = map[uint64]timerTask{}
	s.seen = map[string]struct{}{}
}

// Busy reports whether p has a dispatch in flight.
func (s *State) Busy(p protocol.Participant) bool {
	return s.busy[p]
}

// PendingTimers returns the number of scheduled timers still relevant.
func (s *State) PendingTimers() int {
	return len(s.timers)
}

// Apply runs one command through the transition table.
func (s *State) Apply(cmd Command) ([]Effect, error) {
	switch c := cmd.(type) {
	case UserInput:
		return s.userInput(c)
	case SelectCard:
		return s.selectCard(c)
	case SubmitNewCard:
		return s.submitNewCard(c)
	case MessageArrived:
		return s.arrive(c.Envelope), nil
	case TurnCompleted:
		return s.turnCompleted(c), nil
	case TimerFired:
		return s.timerFired(c), nil
	case Reset:
		return s.reset(), nil
	default:
		return nil, fmt.Errorf("unknown command %T", cmd)
	}
}

func (s *State) userInput(c UserInput) ([]Effect, error) {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	if !s.Status.AcceptsFreeText() {
		return nil, fmt.Errorf("%w (status %s)", ErrInputGated, s.Status)
	}
	p := s.Active
	if s.busy[p] {
		return nil, fmt.Errorf("%w: %s", ErrParticipantBusy, p)
	}

	effects := []Effect{EmitUserMessage{ID: s.newID(), Text: text, Participant: p}}
	return append(effects, s.startDispatch(p, text, dispatch.Options{CustomerID: s.customerFor(p)})...), nil
}

func (s *State) selectCard(c SelectCard) ([]Effect, error) {
	if s.Status != StatusAwaitingCardSelection {
		return nil, fmt.Errorf("%w (status %s)", ErrNotAwaitingCard, s.Status)
	}
	if strings.TrimSpace(c.CardID) == "" {
		return nil, ErrEmptyInput
	}
	return s.cardTurn(fmt.Sprintf("Use saved card %s for payment", c.CardID))
}

func (s *State) submitNewCard(c SubmitNewCard) ([]Effect, error) {
	if s.Status != StatusAwaitingNewCard {
		return nil, fmt.Errorf("%w (status %s)", ErrNotAwaitingCard, s.Status)
	}
	card := c.Card
	return s.cardTurn(fmt.Sprintf("New card details last4:%s brand:%s name:%s expMonth:%d expYear:%d",
		card.Last4, card.Brand, card.Name, card.ExpMonth, card.ExpYear))
}

func (s *State) cardTurn(text string) ([]Effect, error) {
	if s.busy[protocol.Payment] {
		return nil, fmt.Errorf("%w: %s", ErrParticipantBusy, protocol.Payment)
	}
	return s.startDispatch(protocol.Payment, text, dispatch.Options{
		Hidden:                true,
		SkipCustomerInjection: true,
		CustomerID:            s.customerFor(protocol.Payment),
	}), nil
}

// customerFor prefers the customer named in the pending order for payment.
func (s *State) customerFor(p protocol.Participant) string {
	if p == protocol.Payment && s.PendingOrder != nil && s.PendingOrder.CustomerID != "" {
		return s.PendingOrder.CustomerID
	}
	return s.CustomerID
}

func (s *State) startDispatch(p protocol.Participant, text string, opts dispatch.Options) []Effect {
	seq := s.nextSeq
	s.nextSeq++
	s.issued[seq] = issuedTurn{participant: p, base: s.Transcript.Len()}
	s.busy[p] = true

	return []Effect{StartDispatch{
		Generation:  s.Generation,
		Seq:         seq,
		Participant: p,
		Text:        text,
		Transcript:  s.Transcript,
		Options:     opts,
	}}
}

// dispatchOrQueue is used for synthetic turns, which wait for the participant
// instead of failing.
func (s *State) dispatchOrQueue(p protocol.Participant, text string, opts dispatch.Options) []Effect {
	if s.busy[p] {
		s.queued = append(s.queued, pendingDispatch{participant: p, text: text, opts: opts})
		return nil
	}
	return s.startDispatch(p, text, opts)
}

func (s *State) startQueued(p protocol.Participant) []Effect {
	for i, q := range s.queued {
		if q.participant != p {
			continue
		}
		s.queued = append(s.queued[:i:i], s.queued[i+1:]...)
		return s.startDispatch(q.participant, q.text, q.opts)
	}
	return nil
}

func (s *State) turnCompleted(c TurnCompleted) []Effect {
	if c.Generation != s.Generation {
		return nil
	}
	info, ok := s.issued[c.Seq]
	if !ok {
		return nil
	}
	if _, dup := s.completed[c.Seq]; dup {
		return nil
	}

	s.busy[info.participant] = false
	s.completed[c.Seq] = c.Turn

	effects := []Effect{DispatchFinished{Seq: c.Seq, Participant: info.participant, Err: c.Turn.Err}}
	effects = append(effects, s.drain()...)
	return append(effects, s.startQueued(info.participant)...)
}

// drain delivers completed turns in issue order, stopping at the first gap or
// while a deferred result is pending.
func (s *State) drain() []Effect {
	var effects []Effect
	for s.deferred == nil {
		turn, ok := s.completed[s.deliverSeq]
		if !ok {
			break
		}
		info := s.issued[s.deliverSeq]
		delete(s.completed, s.deliverSeq)
		delete(s.issued, s.deliverSeq)
		s.deliverSeq++

		s.Transcript = s.Transcript.Extend(turn.Transcript.Since(info.base)...)
		effects = append(effects, s.deliver(turn.Messages)...)
	}
	return effects
}

// deliver applies the pairing rule to one turn's messages. With both a
// PROCESSING and a RESULT present, the first PROCESSING is emitted in place and
// the first RESULT is deferred; further copies of either are dropped. A lone
// RESULT is emitted in place and a lone PROCESSING is dropped.
func (s *State) deliver(msgs []protocol.StructuredMessage) []Effect {
	envs := make([]Envelope, len(msgs))
	processing, result := -1, -1
	for i, m := range msgs {
		envs[i] = Envelope{ID: s.newID(), Message: m}
		switch m.Type {
		case protocol.TypePaymentProcessing:
			if processing < 0 {
				processing = i
			}
		case protocol.TypePaymentResult:
			if result < 0 {
				result = i
			}
		}
	}

	var effects []Effect
	for i, env := range envs {
		switch env.Message.Type {
		case protocol.TypePaymentProcessing:
			if result < 0 {
				effects = append(effects, Suppressed{Envelope: env, Reason: "processing without result"})
				continue
			}
			if i != processing {
				effects = append(effects, Suppressed{Envelope: env, Reason: "duplicate processing"})
				continue
			}
		case protocol.TypePaymentResult:
			if i != result {
				effects = append(effects, Suppressed{Envelope: env, Reason: "duplicate result"})
				continue
			}
			if processing >= 0 {
				deferred := env
				s.deferred = &deferred
				effects = append(effects, s.schedule(timerTask{kind: TimerDeferredResult}, s.timings.ResultDelay))
				continue
			}
		}
		effects = append(effects, s.arrive(env)...)
	}
	return effects
}

// arrive surfaces one message and applies the transition table. Each message
// identity is handled at most once.
func (s *State) arrive(env Envelope) []Effect {
	if env.ID == "" {
		env.ID = s.newID()
	}
	if _, dup := s.seen[env.ID]; dup {
		return nil
	}
	s.seen[env.ID] = struct{}{}

	effects := []Effect{EmitMessage{Envelope: env}}
	msg := env.Message

	switch msg.Participant() {
	case protocol.Payment:
		next, ok := transitionFor(msg.Type)
		if !ok {
			break
		}
		if msg.Type == protocol.TypePaymentResult {
			s.Active = protocol.Shopping
			effects = append(effects, s.setStatus(next))
			effects = append(effects,
				s.schedule(timerTask{kind: TimerIdle}, s.timings.IdleDelay),
				s.schedule(timerTask{kind: TimerConfirmation, orderID: s.orderIDFrom(msg)}, s.timings.ConfirmationDelay),
			)
			break
		}
		effects = append(effects, s.setStatus(next))
	case protocol.Shopping:
		if msg.Type == protocol.TypeHandoff {
			effects = append(effects, s.handoff(env)...)
		}
	}
	return effects
}

func (s *State) handoff(env Envelope) []Effect {
	order, err := protocol.DecodePayload(env.Message)
	handoff, ok := order.(protocol.HandoffPayload)
	if err != nil || !ok {
		handoff = protocol.HandoffPayload{
			OrderID:    stringValue(env.Message.Data["orderId"]),
			Currency:   stringValue(env.Message.Data["currency"]),
			CustomerID: stringValue(env.Message.Data["customerId"]),
		}
	}
	if handoff.CustomerID == "" {
		handoff.CustomerID = s.CustomerID
	}
	s.PendingOrder = &handoff
	s.Active = protocol.Payment

	text := fmt.Sprintf("Payment request for order %s amount %s %s customerId=%s",
		stringValue(env.Message.Data["orderId"]),
		stringValue(env.Message.Data["amount"]),
		stringValue(env.Message.Data["currency"]),
		handoff.CustomerID)

	return []Effect{
		HandoffStarted{Envelope: env, Order: handoff},
		StatusChanged{Previous: s.Status, Status: s.Status, Active: s.Active},
		s.schedule(timerTask{kind: TimerHandoff, text: text}, s.timings.HandoffDelay),
	}
}

func (s *State) setStatus(next PaymentStatus) Effect {
	prev := s.Status
	s.Status = next
	return StatusChanged{Previous: prev, Status: next, Active: s.Active}
}

func (s *State) schedule(task timerTask, delay time.Duration) Effect {
	s.nextToken++
	s.timers[s.nextToken] = task
	return ScheduleTimer{Token: s.nextToken, Kind: task.kind, Delay: delay}
}

func (s *State) timerFired(c TimerFired) []Effect {
	task, ok := s.timers[c.Token]
	if !ok {
		return nil
	}
	delete(s.timers, c.Token)

	switch task.kind {
	case TimerDeferredResult:
		if s.deferred == nil {
			return nil
		}
		env := *s.deferred
		s.deferred = nil
		return append(s.arrive(env), s.drain()...)
	case TimerIdle:
		if s.Status != StatusDone {
			return nil
		}
		return []Effect{s.setStatus(StatusIdle)}
	case TimerConfirmation:
		msg := protocol.MessageFor(protocol.Shopping, ConfirmationText, protocol.OrderConfirmationPayload{
			OrderID:           task.orderID,
			EstimatedDelivery: EstimatedDelivery,
		})
		s.Transcript = s.Transcript.Append(dispatch.RoleAssistant, msg.JSON())
		return s.arrive(Envelope{ID: s.newID(), Message: msg})
	case TimerHandoff:
		return s.dispatchOrQueue(protocol.Payment, task.text, dispatch.Options{
			Hidden:                true,
			SkipCustomerInjection: true,
			CustomerID:            s.customerFor(protocol.Payment),
		})
	}
	return nil
}

func (s *State) reset() []Effect {
	prev := s.Status
	s.Generation++
	s.clear()
	return []Effect{
		Cleared{},
		StatusChanged{Previous: prev, Status: s.Status, Active: s.Active},
	}
}

func (s *State) orderIDFrom(msg protocol.StructuredMessage) string {
	if id := stringValue(msg.Data["orderId"]); id != "" {
		return id
	}
	if s.PendingOrder != nil {
		return s.PendingOrder.OrderID
	}
	return ""
}

// Snapshot is a copy of the externally visible state.
type Snapshot struct {
	Status       PaymentStatus            `json:"status"`
	ActiveAgent  protocol.Participant     `json:"activeAgent"`
	CustomerID   string                   `json:"customerId"`
	PendingOrder *protocol.HandoffPayload `json:"pendingOrder,omitempty"`
	Generation   uint64                   `json:"generation"`
	Transcript   []dispatch.Line          `json:"transcript"`
}

func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Status:      s.Status,
		ActiveAgent: s.Active,
		CustomerID:  s.CustomerID,
		Generation:  s.Generation,
		Transcript:  s.Transcript.Lines(),
	}
	if s.PendingOrder != nil {
		order := *s.PendingOrder
		snap.PendingOrder = &order
	}
	return snap
}

// stringValue renders a JSON scalar the way it would read in prose.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
