/**
 * @description
 * This file defines the core domain models for the ledger-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (cents), which avoids floating-point inaccuracies with financial data.
 * - Donations never leave the ledger; `completed` and `rejected` are terminal.
 */

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DonationStatus is the lifecycle state of a donation in the ledger.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationRejected  DonationStatus = "rejected"
)

// Terminal reports whether a donation in this status can still transition.
func (s DonationStatus) Terminal() bool {
	return s == DonationCompleted || s == DonationRejected
}

// DonationPurpose categorizes what a donation is earmarked for.
type DonationPurpose string

const (
	PurposeGeneral   DonationPurpose = "general"
	PurposeProject   DonationPurpose = "project"
	PurposeEmergency DonationPurpose = "emergency"
)

// Donation is the authoritative ledger record for a single donation.
// This struct maps directly to the `donations` table in the database.
type Donation struct {
	ID              uuid.UUID       `json:"id"`
	Serial          int64           `json:"serial"`
	Amount          int64           `json:"amount"` // in cents
	Status          DonationStatus  `json:"status"`
	DonorName       *string         `json:"donor_name,omitempty"`  // nil for anonymous donations
	DonorEmail      *string         `json:"donor_email,omitempty"` // nil for anonymous donations
	CampaignID      *uuid.UUID      `json:"campaign_id,omitempty"` // nil means general fund
	Purpose         DonationPurpose `json:"purpose"`
	PaymentMethod   string          `json:"payment_method"`
	ExternalRef     *string         `json:"external_ref,omitempty"`
	ReceiptNo       *string         `json:"receipt_no,omitempty"`       // assigned only on completion
	RejectionReason *string         `json:"rejection_reason,omitempty"` // present iff rejected
	DonatedAt       time.Time       `json:"donated_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

// SearchSerial returns the zero-padded serial string the host app displays
// as the donation's transaction number. Search matches against it.
func (d Donation) SearchSerial() string {
	return fmt.Sprintf("%06d", d.Serial)
}

// BankTransaction is an externally reported payment record awaiting
// association with a donation. The external id is unique within a
// reconciliation period.
type BankTransaction struct {
	ID          string     `json:"id"`
	Period      string     `json:"period"`
	Date        time.Time  `json:"date"`
	Amount      int64      `json:"amount"` // in cents
	Reference   string     `json:"reference"`
	Description string     `json:"description"`
	ConsumedBy  *uuid.UUID `json:"consumed_by,omitempty"` // donation id once applied
}

// MatchPair is a proposed, not-yet-committed association between one
// donation and one bank transaction.
type MatchPair struct {
	DonationID    uuid.UUID `json:"donation_id"`
	TransactionID string    `json:"transaction_id"`
	ProposedAt    time.Time `json:"proposed_at"`
}

// ApplyFailure records a pair that could not be committed, with the reason.
type ApplyFailure struct {
	Pair  MatchPair `json:"pair"`
	Error string    `json:"error"`
}

// ApplyResult summarizes a reconciliation apply: committed pairs and the
// pairs that failed independently of the rest of the batch.
type ApplyResult struct {
	Applied []MatchPair    `json:"applied"`
	Failed  []ApplyFailure `json:"failed"`
}

// SessionView is the read-side projection of an open reconciliation session:
// the remaining unmatched pools and the open pairs.
type SessionView struct {
	OperatorID            string            `json:"operator_id"`
	Period                string            `json:"period"`
	OpenedAt              time.Time         `json:"opened_at"`
	Pairs                 []MatchPair       `json:"pairs"`
	UnmatchedDonations    []Donation        `json:"unmatched_donations"`
	UnmatchedTransactions []BankTransaction `json:"unmatched_transactions"`
}

// MatchSuggestion is a read-only candidate pairing by amount and date
// proximity. Suggestions are advisory; they are never applied automatically.
type MatchSuggestion struct {
	DonationID    uuid.UUID `json:"donation_id"`
	TransactionID string    `json:"transaction_id"`
	DaysApart     int       `json:"days_apart"`
}
