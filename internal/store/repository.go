/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the ledger-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/givebridge/ledger-service/internal/domain"
	"github.com/google/uuid"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Donation ledger methods
	GetDonation(ctx context.Context, donationID uuid.UUID) (*domain.Donation, error)
	ListDonations(ctx context.Context) ([]domain.Donation, error)
	ListPendingDonations(ctx context.Context) ([]domain.Donation, error)
	// ConfirmDonation transitions pending -> completed and assigns a receipt
	// number atomically. Exactly one of two concurrent calls succeeds; the
	// other observes ErrInvalidTransition.
	ConfirmDonation(ctx context.Context, donationID uuid.UUID) (*domain.Donation, error)
	RejectDonation(ctx context.Context, donationID uuid.UUID, reason string) (*domain.Donation, error)

	// Bank transaction pool methods
	GetBankTransaction(ctx context.Context, transactionID string) (*domain.BankTransaction, error)
	ListUnmatchedTransactions(ctx context.Context, period string) ([]domain.BankTransaction, error)
	InsertBankTransactions(ctx context.Context, period string, txs []domain.BankTransaction) (int, error)

	// ApplyMatch commits one match pair in a single database transaction:
	// the donation is confirmed (receipt assigned, external_ref set to the
	// bank reference) and the bank transaction is marked consumed. Either
	// both sides commit or neither does.
	ApplyMatch(ctx context.Context, donationID uuid.UUID, transactionID string) (*domain.Donation, error)
}
