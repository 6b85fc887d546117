package bookingnode

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

// AwaitTime resolves the message against the offered slots.
func AwaitTime(in *GraphState, parser contractx.DateTimeParser) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph state has no session", contractx.ErrValidation)
	}

	slot, ok := parser.MatchTime(in.Text, in.Session.AvailableSlots)
	if !ok {
		in.Outcome = OutcomeKeep
		in.reply(replyTimeUnclear, replyData(in))
		return in, nil
	}

	if err := in.Session.ChooseTime(slot, in.Now); err != nil {
		return nil, err
	}
	in.Outcome = OutcomeSave
	in.reply(replyAskProduct, replyData(in))
	return in, nil
}
