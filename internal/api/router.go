/**
 * @description
 * This file sets up the HTTP router for the ledger-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LedgerRoutes creates and returns a new router for the ledger service.
func LedgerRoutes(h *LedgerHandlers, jwksURL string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Internal service-to-service endpoints, guarded by the shared API key.
	r.Route("/internal/transactions", func(r chi.Router) {
		r.Post("/import", h.ImportTransactionsHandler)
		r.Post("/import-statement", h.ImportStatementHandler)
	})

	// Group routes that require operator authentication.
	r.Group(func(r chi.Router) {
		r.Use(OperatorAuthMiddleware(jwksURL))

		// Donation ledger endpoints
		r.Get("/ledger/donations", h.ListDonationsHandler)
		r.Get("/ledger/donations/{donationID}", h.GetDonationHandler)
		r.Post("/ledger/donations/{donationID}/confirm", h.ConfirmDonationHandler)
		r.Post("/ledger/donations/{donationID}/reject", h.RejectDonationHandler)

		// Stats endpoints
		r.Get("/ledger/stats", h.StatsHandler)
		r.Get("/ledger/stats/daily", h.DailyStatsHandler)

		// Reconciliation endpoints
		r.Post("/ledger/reconciliation/sessions", h.OpenSessionHandler)
		r.Get("/ledger/reconciliation/sessions/current", h.GetSessionHandler)
		r.Delete("/ledger/reconciliation/sessions/current", h.AbandonSessionHandler)
		r.Post("/ledger/reconciliation/pairs", h.ProposePairHandler)
		r.Delete("/ledger/reconciliation/pairs", h.UnmatchPairHandler)
		r.Get("/ledger/reconciliation/suggestions", h.SuggestionsHandler)
		r.Post("/ledger/reconciliation/apply", h.ApplyHandler)
	})

	return r
}
