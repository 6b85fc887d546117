package bookingnode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

// PublishBooking runs the post-booking hooks. Hook failures are logged only;
// the appointment already exists.
func PublishBooking(ctx context.Context, in *GraphState, hooks []contractx.BookingHook) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Appointment == nil {
		return in, nil
	}

	hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook.OnBooked(hookCtx, *in.Appointment); err != nil {
			log.Warn().Err(err).
				Str("tenant_id", in.Key.TenantID).
				Str("appointment_id", in.Appointment.ID).
				Str("hook", fmt.Sprintf("%T", hook)).
				Msg("booking hook failed")
		}
	}
	return in, nil
}
