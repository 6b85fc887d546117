package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	nodex "github.com/tanpawarit/Chative-Concierge/agent/nodes/booking"
	promptx "github.com/tanpawarit/Chative-Concierge/agent/prompt"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

var (
	ErrInvalidMessage  = nodex.ErrInvalidMessage
	ErrInvalidCustomer = nodex.ErrInvalidCustomer
)

// Turn is one inbound customer message.
type Turn struct {
	TenantID    string
	Phone       string
	DisplayName string
	Text        string
}

// Reply is the scheduling answer for a turn. Appointment is set only on the
// turn that committed a booking.
type Reply struct {
	Text        string
	State       statex.DialogueState
	Appointment *contractx.Appointment
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithHooks(hooks ...contractx.BookingHook) Option {
	return func(o *Orchestrator) {
		o.hooks = append(o.hooks, hooks...)
	}
}

func WithReplies(replies *promptx.Replies) Option {
	return func(o *Orchestrator) {
		if replies != nil {
			o.replies = replies
		}
	}
}

// Orchestrator drives the booking dialogue. Turns for the same
// (tenant, phone) run one at a time, in lock acquisition order.
type Orchestrator struct {
	store     statex.Store
	parser    contractx.DateTimeParser
	scheduler contractx.SlotScheduler
	bookings  contractx.BookingRepository
	replies   *promptx.Replies
	hooks     []contractx.BookingHook

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(
	store statex.Store,
	parser contractx.DateTimeParser,
	scheduler contractx.SlotScheduler,
	bookings contractx.BookingRepository,
	opts ...Option,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if parser == nil {
		return nil, errors.New("date time parser is required")
	}
	if scheduler == nil {
		return nil, errors.New("slot scheduler is required")
	}
	if bookings == nil {
		return nil, errors.New("booking repository is required")
	}

	o := &Orchestrator{
		store:     store,
		parser:    parser,
		scheduler: scheduler,
		bookings:  bookings,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.replies == nil {
		replies, err := promptx.LoadReplies()
		if err != nil {
			return nil, err
		}
		o.replies = replies
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage advances the customer's booking by one message. On error the
// stored session is left as it was before the call.
func (o *Orchestrator) HandleMessage(ctx context.Context, turn Turn) (Reply, error) {
	key := statex.NewKey(turn.TenantID, turn.Phone)
	if !key.Valid() {
		return Reply{}, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidCustomer)
	}

	unlock, err := o.store.Lock(ctx, key)
	if err != nil {
		return Reply{}, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		TenantID:    key.TenantID,
		Phone:       key.Phone,
		DisplayName: turn.DisplayName,
		Text:        turn.Text,
	})
	if err != nil {
		log.Debug().Err(err).Str("tenant_id", key.TenantID).Str("phone", key.Phone).Msg("booking turn failed")
		return Reply{}, err
	}

	return Reply{
		Text:        out.Reply,
		State:       out.State,
		Appointment: out.Appointment,
	}, nil
}
