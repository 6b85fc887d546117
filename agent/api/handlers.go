package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Concierge/agent/agents/booking"
	"github.com/tanpawarit/Chative-Concierge/agent/assign"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/docscore"
)

const (
	defaultSearchLimit     = 5
	defaultSearchThreshold = 0.7
	defaultRecentLimit     = 10
)

type MessageRequest struct {
	TenantID    string `json:"tenant_id"`
	Phone       string `json:"phone"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
}

type MessageResponse struct {
	Reply       string                 `json:"reply"`
	State       string                 `json:"state"`
	Appointment *contractx.Appointment `json:"appointment,omitempty"`
}

type MemoryRequest struct {
	Text       string                 `json:"text"`
	Source     contractx.MemorySource `json:"source"`
	Confidence float64                `json:"confidence"`
}

func handleMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		defer r.Body.Close()

		var req MessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		reply, err := deps.Concierge.HandleMessage(r.Context(), booking.Turn{
			TenantID:    req.TenantID,
			Phone:       req.Phone,
			DisplayName: req.DisplayName,
			Text:        req.Text,
		})
		if err != nil {
			log.Error().Err(err).Str("tenant_id", req.TenantID).Str("phone", req.Phone).Msg("handle message failed")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, MessageResponse{
			Reply:       reply.Text,
			State:       string(reply.State),
			Appointment: reply.Appointment,
		})
	}
}

func handleAddMemory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		defer r.Body.Close()

		var req MemoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Source == "" {
			req.Source = contractx.SourceManual
		}

		fact, err := deps.Memories.AddMemory(r.Context(), chi.URLParam(r, "customerID"), req.Text, req.Source, req.Confidence)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, fact)
	}
}

func handleSearchMemories(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, err := intParam(q.Get("limit"), defaultSearchLimit)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit: %v", err)
			return
		}
		threshold := defaultSearchThreshold
		if raw := q.Get("threshold"); raw != "" {
			threshold, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid threshold: %v", err)
				return
			}
		}

		results, err := deps.Memories.SearchMemories(r.Context(), chi.URLParam(r, "customerID"), q.Get("q"), limit, threshold)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

func handleRecentMemories(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intParam(r.URL.Query().Get("limit"), defaultRecentLimit)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit: %v", err)
			return
		}

		facts, err := deps.Memories.GetRecentMemories(r.Context(), chi.URLParam(r, "customerID"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": facts})
	}
}

// handleAssign serves QStash deliveries. Only transient failures answer 5xx,
// since QStash retries those.
func handleAssign(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "read body: %v", err)
			return
		}
		if err := deps.Verifier.Verify(r.Header.Get("Upstash-Signature"), body, deps.AssignURL); err != nil {
			log.Warn().Err(err).Msg("rejected assign delivery")
			httpError(w, http.StatusUnauthorized, "authentication_error", "invalid signature")
			return
		}

		var req assign.TriggerRequest
		err = json.Unmarshal(body, &req)
		req.TenantID = contractx.NormalizeTenantID(req.TenantID)
		if err != nil || req.TenantID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "tenant_id is required")
			return
		}

		res, err := deps.Assign.Trigger(r.Context(), req.TenantID)
		if err != nil && !errors.Is(err, contractx.ErrNoStaffAvailable) {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"assigned":         res.Assigned,
			"total_unassigned": res.TotalUnassigned,
		})
	}
}

func handleDocumentScore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	var flags map[docscore.Flag]bool
	if err := json.NewDecoder(r.Body).Decode(&flags); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, docscore.Score(flags))
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
