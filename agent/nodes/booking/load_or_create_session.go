package bookingnode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

// LoadSession attaches the customer's stored session, or leaves Session nil
// when there is none. Creation happens in StartSession.
func LoadSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	st, err := store.Load(ctx, in.Key)
	switch {
	case err == nil:
		in.Session = st
	case errors.Is(err, statex.ErrStateNotFound):
		in.Session = nil
	default:
		return nil, fmt.Errorf("load session: %w", err)
	}
	return in, nil
}

// StartSession opens a new session in AwaitingDate and asks for a date.
func StartSession(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	in.Session = statex.NewBookingSession(in.Key, in.DisplayName, in.Now)
	in.Outcome = OutcomeSave
	in.reply(replyAskDate, replyData(in))
	return in, nil
}
