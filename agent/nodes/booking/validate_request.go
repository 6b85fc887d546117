package bookingnode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	promptx "github.com/tanpawarit/Chative-Concierge/agent/prompt"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

var (
	ErrInvalidMessage  = errors.New("message is empty")
	ErrInvalidCustomer = errors.New("tenant id and phone are required")
)

type GraphInput struct {
	TenantID    string
	Phone       string
	DisplayName string
	Text        string
}

type GraphOutput struct {
	Reply       string
	State       statex.DialogueState
	Appointment *contractx.Appointment
}

// Outcome is what persist_session does with the working session.
type Outcome int

const (
	// OutcomeKeep leaves the stored session untouched.
	OutcomeKeep Outcome = iota
	OutcomeSave
	OutcomeDelete
)

// GraphState carries one turn through the graph. Session is a private copy;
// nothing reaches the store until persist_session.
type GraphState struct {
	Key         statex.Key
	DisplayName string
	Text        string
	Now         time.Time

	Session *statex.BookingSession

	Outcome     Outcome
	Reply       promptx.Reply
	ReplyData   promptx.ReplyData
	Appointment *contractx.Appointment
}

func (s *GraphState) reply(r promptx.Reply, data promptx.ReplyData) {
	s.Reply = r
	s.ReplyData = data
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	key := statex.NewKey(in.TenantID, in.Phone)
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidCustomer)
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidMessage)
	}

	return &GraphState{
		Key:         key,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Text:        text,
		Now:         nowFn().UTC(),
	}, nil
}
