package bookingnode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	promptx "github.com/tanpawarit/Chative-Concierge/agent/prompt"
)

// AwaitDate reads a date in the tenant's timezone and offers its open slots.
// Unparsable text or a day without openings re-prompts and leaves the stored
// session as it was.
func AwaitDate(
	ctx context.Context,
	in *GraphState,
	parser contractx.DateTimeParser,
	scheduler contractx.SlotScheduler,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph state has no session", contractx.ErrValidation)
	}

	loc, err := scheduler.Location(ctx, in.Key.TenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant location: %w", err)
	}

	date, ok := parser.ParseDate(in.Text, loc)
	if !ok {
		in.Outcome = OutcomeKeep
		in.reply(replyDateUnclear, replyData(in))
		return in, nil
	}

	slots, err := scheduler.GetAvailableSlots(ctx, in.Key.TenantID, date)
	if err != nil {
		return nil, fmt.Errorf("available slots: %w", err)
	}

	if len(slots) == 0 {
		in.Outcome = OutcomeKeep
		data := replyData(in)
		data.Date = promptx.FormatDate(date)
		in.reply(replyNoAvailability, data)
		return in, nil
	}

	if err := in.Session.OfferSlots(slots[0].Date, slots, in.Now); err != nil {
		return nil, err
	}
	in.Outcome = OutcomeSave
	in.reply(replyOfferSlots, replyData(in))
	return in, nil
}
