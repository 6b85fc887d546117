package bookingnode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

// AwaitProduct records the optional product interest and commits the booking.
//
// A full slot at commit time re-offers the day's remaining slots, or asks for
// a new day when none remain. Any other failure keeps the session in
// AwaitingProduct so the next message retries the commit.
func AwaitProduct(
	ctx context.Context,
	in *GraphState,
	scheduler contractx.SlotScheduler,
	bookings contractx.BookingRepository,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph state has no session", contractx.ErrValidation)
	}
	slot, ok := in.Session.SelectedSlot()
	if !ok {
		return nil, fmt.Errorf("%w: no chosen slot", statex.ErrInvalidState)
	}

	interest := strings.TrimSpace(in.Text)
	if isSkip(interest) {
		interest = ""
	}

	logger := log.With().
		Str("tenant_id", in.Key.TenantID).
		Str("phone", in.Key.Phone).
		Str("slot_date", slot.Date).
		Str("slot_label", slot.Label).
		Logger()

	capacity, err := scheduler.Capacity(ctx, in.Key.TenantID, slot)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, contractx.ErrNoAvailability) {
			logger.Warn().Err(err).Msg("chosen slot no longer configured")
			return reofferAfterConflict(ctx, in, scheduler, slot)
		}
		logger.Error().Err(err).Msg("resolve slot capacity failed")
		return commitFailed(in), nil
	}

	appt, err := bookings.CreateAppointment(ctx, contractx.BookingRequest{
		TenantID:        in.Key.TenantID,
		Phone:           in.Key.Phone,
		DisplayName:     in.Session.DisplayName,
		Slot:            slot,
		Capacity:        capacity,
		ProductInterest: interest,
	})
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, contractx.ErrCapacityConflict):
		logger.Info().Err(err).Msg("slot filled before commit")
		return reofferAfterConflict(ctx, in, scheduler, slot)
	default:
		logger.Error().Err(err).Msg("create appointment failed")
		return commitFailed(in), nil
	}

	logger.Info().Str("appointment_id", appt.ID).Msg("appointment booked")

	in.Session.ProductInterest = interest
	in.Session.State = statex.StateCompleted
	in.Session.Touch(in.Now)
	in.Appointment = &appt
	in.Outcome = OutcomeDelete

	data := replyData(in)
	data.Staff = appt.StaffName
	in.reply(replyConfirmed, data)
	return in, nil
}

func reofferAfterConflict(
	ctx context.Context,
	in *GraphState,
	scheduler contractx.SlotScheduler,
	taken contractx.Slot,
) (*GraphState, error) {
	date, err := time.Parse(contractx.DateLayout, taken.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: slot date %q", statex.ErrInvalidState, taken.Date)
	}

	slots, err := scheduler.GetAvailableSlots(ctx, in.Key.TenantID, date)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Error().Err(err).Str("tenant_id", in.Key.TenantID).Msg("recompute slots after conflict failed")
		return commitFailed(in), nil
	}

	if len(slots) == 0 {
		in.Session.ResetToDate(in.Now)
		in.Outcome = OutcomeSave
		data := replyData(in)
		data.Date = displayDate(taken.Date)
		data.Time = taken.Label
		in.reply(replySlotTakenDayFull, data)
		return in, nil
	}

	if err := in.Session.OfferSlots(taken.Date, slots, in.Now); err != nil {
		return nil, err
	}
	in.Outcome = OutcomeSave
	data := replyData(in)
	data.Time = taken.Label
	in.reply(replySlotTaken, data)
	return in, nil
}

func commitFailed(in *GraphState) *GraphState {
	in.Outcome = OutcomeKeep
	in.reply(replyCommitFailed, replyData(in))
	return in
}
