package bookingnode

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

const cleanupTimeout = 5 * time.Second

// PersistSession writes the turn's outcome. A cancelled turn writes nothing,
// except that a committed booking always clears its session.
func PersistSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if in.Appointment != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := store.Delete(cleanupCtx, in.Key); err != nil {
			log.Error().Err(err).
				Str("tenant_id", in.Key.TenantID).
				Str("phone", in.Key.Phone).
				Str("appointment_id", in.Appointment.ID).
				Msg("clear session after booking failed")
		}
		return in, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch in.Outcome {
	case OutcomeSave:
		if err := in.Session.Validate(); err != nil {
			return nil, fmt.Errorf("refusing to save session: %w", err)
		}
		if err := store.Save(ctx, in.Session); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	case OutcomeDelete:
		if err := store.Delete(ctx, in.Key); err != nil {
			return nil, fmt.Errorf("delete session: %w", err)
		}
	}
	return in, nil
}
