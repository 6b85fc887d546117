package bookingnode

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	promptx "github.com/tanpawarit/Chative-Concierge/agent/prompt"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

func FinalizeReply(in *GraphState, replies *promptx.Replies) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: no reply selected", contractx.ErrValidation)
	}

	text, err := replies.Render(in.Reply, in.ReplyData)
	if err != nil {
		return GraphOutput{}, err
	}

	return GraphOutput{
		Reply:       text,
		State:       resultingState(in),
		Appointment: in.Appointment,
	}, nil
}

// resultingState is the state the customer is in after this turn.
func resultingState(in *GraphState) statex.DialogueState {
	if in.Session == nil || in.Outcome == OutcomeDelete {
		return statex.StateNoSession
	}
	return in.Session.State
}
