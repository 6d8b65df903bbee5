package conversation

import (
	"time"

	"github.com/caia/concierge/internal/services/dispatch"
	"github.com/caia/concierge/internal/services/payment"
	"github.com/caia/concierge/pkg/protocol"
)

// Envelope gives a structured message its identity within a session.
type Envelope struct {
	ID      string
	Message protocol.StructuredMessage
}

// Command is an input to State.Apply.
type Command interface {
	command()
}

// UserInput is free text typed by the user, routed to the active participant.
type UserInput struct {
	Text string
}

type SelectCard struct {
	CardID string
}

type SubmitNewCard struct {
	Card payment.NewCard
}

// MessageArrived delivers one message outside of a dispatched turn.
type MessageArrived struct {
	Envelope Envelope
}

// TurnCompleted carries the result of a StartDispatch effect back in.
type TurnCompleted struct {
	Generation uint64
	Seq        uint64
	Turn       dispatch.Turn
}

type TimerFired struct {
	Token uint64
}

type Reset struct{}

func (UserInput) command()      {}
func (SelectCard) command()     {}
func (SubmitNewCard) command()  {}
func (MessageArrived) command() {}
func (TurnCompleted) command()  {}
func (TimerFired) command()     {}
func (Reset) command()          {}

type TimerKind string

const (
	TimerHandoff        TimerKind = "handoff"
	TimerDeferredResult TimerKind = "deferred_result"
	TimerIdle           TimerKind = "idle"
	TimerConfirmation   TimerKind = "order_confirmation"
)

// Effect is an instruction for the session to carry out after Apply.
type Effect interface {
	effect()
}

// EmitMessage surfaces a participant message to the UI.
type EmitMessage struct {
	Envelope Envelope
}

// EmitUserMessage surfaces the user's own visible input.
type EmitUserMessage struct {
	ID          string
	Text        string
	Participant protocol.Participant
}

// StartDispatch asks for a turn to be sent to a participant. Its result must
// be fed back as TurnCompleted with the same Generation and Seq.
type StartDispatch struct {
	Generation  uint64
	Seq         uint64
	Participant protocol.Participant
	Text        string
	Transcript  dispatch.Transcript
	Options     dispatch.Options
}

type DispatchFinished struct {
	Seq         uint64
	Participant protocol.Participant
	Err         error
}

// ScheduleTimer asks for TimerFired{Token} to be applied after Delay.
type ScheduleTimer struct {
	Token uint64
	Kind  TimerKind
	Delay time.Duration
}

type StatusChanged struct {
	Previous PaymentStatus
	Status   PaymentStatus
	Active   protocol.Participant
}

// Suppressed reports a message that was dropped instead of surfaced.
type Suppressed struct {
	Envelope Envelope
	Reason   string
}

type HandoffStarted struct {
	Envelope Envelope
	Order    protocol.HandoffPayload
}

type Cleared struct{}

func (EmitMessage) effect()      {}
func (EmitUserMessage) effect()  {}
func (StartDispatch) effect()    {}
func (DispatchFinished) effect() {}
func (ScheduleTimer) effect()    {}
func (StatusChanged) effect()    {}
func (Suppressed) effect()       {}
func (HandoffStarted) effect()   {}
func (Cleared) effect()          {}
