package bookingnode

import (
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	promptx "github.com/tanpawarit/Chative-Concierge/agent/prompt"
)

const (
	replyAskDate          = promptx.ReplyAskDate
	replyDateUnclear      = promptx.ReplyDateUnclear
	replyNoAvailability   = promptx.ReplyNoAvailability
	replyOfferSlots       = promptx.ReplyOfferSlots
	replyTimeUnclear      = promptx.ReplyTimeUnclear
	replyAskProduct       = promptx.ReplyAskProduct
	replyConfirmed        = promptx.ReplyConfirmed
	replySlotTaken        = promptx.ReplySlotTaken
	replySlotTakenDayFull = promptx.ReplySlotTakenDayFull
	replyCommitFailed     = promptx.ReplyCommitFailed
	replyAbandoned        = promptx.ReplyAbandoned
)

// replyData fills what the session already knows.
func replyData(in *GraphState) promptx.ReplyData {
	data := promptx.ReplyData{Name: in.DisplayName}
	if in.Session == nil {
		return data
	}
	if data.Name == "" {
		data.Name = in.Session.DisplayName
	}
	data.Date = displayDate(in.Session.PreferredDate)
	data.Time = in.Session.PreferredTime
	data.Slots = slotLabels(in.Session.AvailableSlots)
	data.Product = in.Session.ProductInterest
	return data
}

func displayDate(date string) string {
	if date == "" {
		return ""
	}
	d, err := time.Parse(contractx.DateLayout, date)
	if err != nil {
		return date
	}
	return promptx.FormatDate(d)
}

func slotLabels(slots []contractx.Slot) []string {
	if len(slots) == 0 {
		return nil
	}
	labels := make([]string, 0, len(slots))
	for _, s := range slots {
		labels = append(labels, s.Label)
	}
	return labels
}
