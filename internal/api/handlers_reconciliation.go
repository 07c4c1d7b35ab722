/**
 * @description
 * This file contains the HTTP handlers for the reconciliation endpoints: the
 * session lifecycle (open, inspect, abandon), pair management (propose,
 * unmatch, suggestions), and the apply step that commits the batch to the
 * ledger. All endpoints operate on the authenticated operator's own session.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain: For service logic and models.
 */

package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type openSessionRequest struct {
	Period string `json:"period"`
}

type pairRequest struct {
	DonationID    string `json:"donation_id"`
	TransactionID string `json:"transaction_id"`
}

// OpenSessionHandler opens (or replaces) the operator's reconciliation
// session for a period.
func (h *LedgerHandlers) OpenSessionHandler(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.requireOperator(w, r)
	if !ok {
		return
	}
	if !h.consumeLimit(w, r, "session_open", operatorID, h.sessionOpenLimitPerMinute) {
		return
	}

	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.service.OpenReconciliation(r.Context(), operatorID, req.Period)
	if err != nil {
		h.handleLedgerError(w, "open_session", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, view)
}

// GetSessionHandler returns the operator's open session view.
func (h *LedgerHandlers) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.requireOperator(w, r)
	if !ok {
		return
	}
	view, err := h.service.CurrentSession(operatorID)
	if err != nil {
		h.handleLedgerError(w, "get_session", err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// AbandonSessionHandler discards the operator's open session without any
// ledger writes.
func (h *LedgerHandlers) AbandonSessionHandler(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.requireOperator(w, r)
	if !ok {
		return
	}
	if err := h.service.AbandonReconciliation(operatorID); err != nil {
		h.handleLedgerError(w, "abandon_session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProposePairHandler adds a (donation, transaction) pair to the open batch.
func (h *LedgerHandlers) ProposePairHandler(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.requireOperator(w, r)
	if !ok {
		return
	}

	donationID, transactionID, ok := h.parsePairRequest(w, r)
	if !ok {
		return
	}

	pair, err := h.service.Propose(operatorID, donationID, transactionID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=propose_pair outcome=failed operator_id=%s donation_id=%s transaction_id=%s err=%v", operatorID, donationID, transactionID, err)
		h.handleLedgerError(w, "propose_pair", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, pair)
}

// UnmatchPairHandler withdraws a pair from the open batch.
func (h *LedgerHandlers) UnmatchPairHandler(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.requireOperator(w, r)
	if !ok {
		return
	}

	donationID, transactionID, ok := h.parsePairRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.Unmatch(r.Context(), operatorID, donationID, transactionID); err != nil {
		h.handleLedgerError(w, "unmatch_pair", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyHandler commits the operator's open batch pair by pair and reports
// which pairs succeeded and which failed with why.
func (h *LedgerHandlers) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.requireOperator(w, r)
	if !ok {
		return
	}
	if !h.consumeLimit(w, r, "apply", operatorID, h.applyLimitPerMinute) {
		return
	}

	result, err := h.service.ApplyReconciliation(r.Context(), operatorID)
	if err != nil {
		h.handleLedgerError(w, "apply", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// SuggestionsHandler returns advisory amount/date candidate pairings for the
// open batch.
func (h *LedgerHandlers) SuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.requireOperator(w, r)
	if !ok {
		return
	}
	suggestions, err := h.service.Suggestions(operatorID)
	if err != nil {
		h.handleLedgerError(w, "suggestions", err)
		return
	}
	h.writeJSON(w, http.StatusOK, suggestions)
}

func (h *LedgerHandlers) requireOperator(w http.ResponseWriter, r *http.Request) (string, bool) {
	operatorID, ok := GetOperatorID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get operator ID from context")
		return "", false
	}
	return operatorID, true
}

func (h *LedgerHandlers) parsePairRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return uuid.Nil, "", false
	}
	donationID, err := uuid.Parse(req.DonationID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid donation ID format")
		return uuid.Nil, "", false
	}
	if req.TransactionID == "" {
		h.writeError(w, http.StatusBadRequest, "Transaction ID is required")
		return uuid.Nil, "", false
	}
	return donationID, req.TransactionID, true
}

// consumeLimit enforces the per-operator rate limit for a scope. Limiter
// errors fail open: reconciliation must not stall because Redis is down.
func (h *LedgerHandlers) consumeLimit(w http.ResponseWriter, r *http.Request, scope, operatorID string, limit int) bool {
	if h.limiter == nil || limit <= 0 {
		return true
	}
	count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), scope, operatorID, limit, time.Minute)
	if err != nil {
		log.Printf("level=warn component=api msg=\"rate limiter unavailable; allowing request\" scope=%s operator_id=%s err=%v", scope, operatorID, err)
		return true
	}
	if count > limit {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, fmt.Sprintf("Rate limit exceeded. Retry in %d seconds.", retryAfter))
		return false
	}
	return true
}
