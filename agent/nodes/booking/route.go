package bookingnode

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	datetimex "github.com/tanpawarit/Chative-Concierge/agent/datetime"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

const (
	NodeStartSession   = "start_session"
	NodeAwaitDate      = "await_date"
	NodeAwaitTime      = "await_time"
	NodeAwaitProduct   = "await_product"
	NodeAbandonSession = "abandon_session"
)

// StepNodes lists every node Route can select.
var StepNodes = []string{NodeStartSession, NodeAwaitDate, NodeAwaitTime, NodeAwaitProduct, NodeAbandonSession}

var (
	abandonTokens = map[string]bool{
		"cancelar": true,
		"cancela":  true,
		"cancel":   true,
		"sair":     true,
		"parar":    true,
		"stop":     true,
	}
	skipTokens = map[string]bool{
		"nao":          true,
		"no":           true,
		"n":            true,
		"skip":         true,
		"pular":        true,
		"nenhum":       true,
		"nenhuma":      true,
		"nada":         true,
		"no thanks":    true,
		"nao obrigado": true,
	}
)

// Route picks the step for the session's current state.
func Route(_ context.Context, in *GraphState) (string, error) {
	if in == nil {
		return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Session == nil {
		return NodeStartSession, nil
	}
	if isAbandon(in.Text) {
		return NodeAbandonSession, nil
	}
	switch in.Session.State {
	case statex.StateAwaitingDate:
		return NodeAwaitDate, nil
	case statex.StateAwaitingTime:
		return NodeAwaitTime, nil
	case statex.StateAwaitingProduct:
		return NodeAwaitProduct, nil
	default:
		return "", fmt.Errorf("%w: no step for state %q", statex.ErrInvalidState, in.Session.State)
	}
}

func isAbandon(text string) bool {
	return abandonTokens[normalizeReply(text)]
}

func isSkip(text string) bool {
	return skipTokens[normalizeReply(text)]
}

// normalizeReply folds case and accents and drops punctuation.
func normalizeReply(text string) string {
	return strings.Join(datetimex.Tokens(text), " ")
}

// AbandonSession drops the session at the customer's request.
func AbandonSession(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	in.Outcome = OutcomeDelete
	in.reply(replyAbandoned, replyData(in))
	return in, nil
}
