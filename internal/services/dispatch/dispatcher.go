// Package dispatch routes a turn to one participant's text generator and turns
// the reply into structured messages.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caia/concierge/internal/observability"
	"github.com/caia/concierge/internal/services/catalog"
	"github.com/caia/concierge/pkg/logger"
	"github.com/caia/concierge/pkg/protocol"
)

// ErrorText is shown when a participant could not be reached.
const ErrorText = "Error contacting agent."

// Generator produces raw text for a participant given the conversation so far
// and the newest user input.
type Generator interface {
	Generate(ctx context.Context, transcript string, userText string) (string, error)
}

type GeneratorFunc func(ctx context.Context, transcript string, userText string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, transcript string, userText string) (string, error) {
	return f(ctx, transcript, userText)
}

type CustomerLookup interface {
	GetCustomer(id string) (catalog.Customer, bool)
}

type Options struct {
	// Hidden turns are recorded in the transcript but not shown to the user.
	Hidden bool
	// SkipCustomerInjection leaves shopping input untouched.
	SkipCustomerInjection bool
	CustomerID            string
}

// Turn is the result of one dispatch.
type Turn struct {
	Participant protocol.Participant
	UserText    string
	Hidden      bool
	Raw         string
	Messages    []protocol.StructuredMessage
	Outcome     protocol.Outcome
	// Transcript is the input transcript extended with this turn, or the input
	// unchanged when Err is set.
	Transcript Transcript
	Err        error
	Duration   time.Duration
}

type Config struct {
	Timeout    time.Duration
	Normalizer protocol.Normalizer
}

type Dispatcher struct {
	generators map[protocol.Participant]Generator
	customers  CustomerLookup
	config     Config
}

func New(generators map[protocol.Participant]Generator, customers CustomerLookup, optFns ...func(*Config)) *Dispatcher {
	cfg := Config{Timeout: 60 * time.Second}
	for _, fn := range optFns {
		fn(&cfg)
	}

	g := make(map[protocol.Participant]Generator, len(generators))
	for p, gen := range generators {
		g[p] = gen
	}

	return &Dispatcher{generators: g, customers: customers, config: cfg}
}

// Dispatch sends userText to participant p. It never returns an error: a
// generator failure is reported through Turn.Err together with a local ERROR
// message, and the input transcript is returned unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, p protocol.Participant, userText string, transcript Transcript, opts Options) Turn {
	turn := Turn{Participant: p, UserText: userText, Hidden: opts.Hidden}

	text := userText
	if p == protocol.Shopping && !opts.SkipCustomerInjection && opts.CustomerID != "" {
		text = fmt.Sprintf("%s (customerId:%s)", userText, opts.CustomerID)
	}

	withUser := transcript.Append(RoleUser, text)

	forwarded := withUser
	if p == protocol.Payment {
		if note := d.customerNote(opts.CustomerID); note != "" {
			forwarded = NewTranscript(Line{Role: RoleSystem, Text: note}).Extend(withUser.lines...)
		}
	}

	gen, ok := d.generators[p]
	if !ok {
		return d.fail(turn, transcript, fmt.Errorf("no generator configured for participant %q", p))
	}

	callCtx := ctx
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	logger.Debug(logger.DISPATCH, "Dispatching turn to %s (hidden=%t, transcript=%d lines)", p, opts.Hidden, transcript.Len())

	start := time.Now()
	raw, err := gen.Generate(callCtx, forwarded.String(), text)
	turn.Duration = time.Since(start)
	observability.DispatchDuration.WithLabelValues(string(p)).Observe(turn.Duration.Seconds())
	if err != nil {
		return d.fail(turn, transcript, fmt.Errorf("generate %s reply: %w", p, err))
	}

	msgs, outcome := d.config.Normalizer.Normalize(raw, p)
	observability.NormalizeOutcomes.WithLabelValues(string(outcome)).Inc()
	observability.DispatchesTotal.WithLabelValues(string(p), "ok").Inc()

	out := withUser
	for _, m := range msgs {
		out = out.Append(RoleAssistant, m.JSON())
	}

	turn.Raw = raw
	turn.Messages = msgs
	turn.Outcome = outcome
	turn.Transcript = out
	return turn
}

func (d *Dispatcher) fail(turn Turn, transcript Transcript, err error) Turn {
	logger.Error(logger.DISPATCH, "Dispatch to %s failed: %v", turn.Participant, err)
	observability.DispatchesTotal.WithLabelValues(string(turn.Participant), "error").Inc()

	turn.Err = err
	turn.Messages = []protocol.StructuredMessage{protocol.NewMessage(turn.Participant, protocol.TypeError, ErrorText, nil)}
	turn.Transcript = transcript
	return turn
}

// customerNote describes the customer's saved cards to the payment participant.
func (d *Dispatcher) customerNote(customerID string) string {
	if d.customers == nil || customerID == "" {
		return ""
	}
	cust, ok := d.customers.GetCustomer(customerID)
	if !ok {
		return fmt.Sprintf("customerId=%s hasSavedCards=false (unknown customer)", customerID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "customerId=%s hasSavedCards=%t", cust.CustomerID, cust.HasSavedCards())
	if cust.HasSavedCards() {
		b.WriteString(" savedCards=")
		for i, c := range cust.Cards {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s %s ****%s exp %02d/%d", c.ID, c.Brand, c.Last4, c.ExpMonth, c.ExpYear)
		}
	}
	return b.String()
}
