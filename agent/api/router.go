package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Concierge/agent/agents/booking"
	"github.com/tanpawarit/Chative-Concierge/agent/assign"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

const maxBodySize = 64 << 10

type Concierge interface {
	HandleMessage(ctx context.Context, turn booking.Turn) (booking.Reply, error)
}

type Memories interface {
	AddMemory(ctx context.Context, customerID, text string, source contractx.MemorySource, confidence float64) (contractx.MemoryFact, error)
	SearchMemories(ctx context.Context, customerID, query string, limit int, threshold float64) ([]contractx.Neighbor, error)
	GetRecentMemories(ctx context.Context, customerID string, limit int) ([]contractx.MemoryFact, error)
}

type AssignTrigger interface {
	Trigger(ctx context.Context, tenantID string) (assign.Result, error)
}

// SignatureVerifier checks a QStash delivery; *qstash.Client satisfies it.
type SignatureVerifier interface {
	Verify(signature string, body []byte, deliveredURL string) error
}

type Deps struct {
	Token     string
	Concierge Concierge
	Memories  Memories // optional
	Assign    AssignTrigger
	Verifier  SignatureVerifier
	AssignURL string // public URL QStash delivers to; checked against the signature subject
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/v1/messages", handleMessage(deps))
		r.Post("/v1/documents/score", handleDocumentScore)
		if deps.Memories != nil {
			r.Post("/v1/customers/{customerID}/memories", handleAddMemory(deps))
			r.Get("/v1/customers/{customerID}/memories/search", handleSearchMemories(deps))
			r.Get("/v1/customers/{customerID}/memories/recent", handleRecentMemories(deps))
		}
	})

	if deps.Assign != nil && deps.Verifier != nil {
		r.Post("/v1/assign", handleAssign(deps))
	}

	return r
}

func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if token == "" || !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, contractx.ErrValidation):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, contractx.ErrNotFound):
		return http.StatusNotFound, "not_found_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout_error"
	case errors.Is(err, contractx.ErrExternalService):
		return http.StatusBadGateway, "api_error"
	default:
		return http.StatusInternalServerError, "api_error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	code, errType := statusFor(err)
	if code >= http.StatusInternalServerError {
		httpError(w, code, errType, "request failed")
		return
	}
	httpError(w, code, errType, "%v", err)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}
