package domain

import (
	"time"

	"github.com/google/uuid"
)

// DonationStatusEvent is published to the ledger.events exchange whenever a
// donation reaches a terminal state, so downstream services (receipts,
// notifications) can react without polling the ledger.
type DonationStatusEvent struct {
	DonationID uuid.UUID      `json:"donation_id"`
	Status     DonationStatus `json:"status"`
	Amount     int64          `json:"amount"`
	ReceiptNo  *string        `json:"receipt_no,omitempty"`
	Reason     *string        `json:"reason,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ReconciliationAppliedEvent summarizes one apply of a reconciliation batch.
type ReconciliationAppliedEvent struct {
	OperatorID   string    `json:"operator_id"`
	Period       string    `json:"period"`
	AppliedCount int       `json:"applied_count"`
	FailedCount  int       `json:"failed_count"`
	Timestamp    time.Time `json:"timestamp"`
}
