package db

import (
	"github.com/shopspring/decimal"
)

// Invoice status values. "verified" is what older ledgers wrote on settlement and is read as paid.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusVerified  = "verified"
	StatusDelivered = "delivered"
)

type Invoice struct {
	InvoiceID string          `json:"invoice_id"` // uuid, hex without dashes
	Amount    decimal.Decimal `json:"amount"`     // in USDC, at most 6 decimals
	Memo      string          `json:"memo"`
	Payee     string          `json:"payee,omitempty"` // wallet address, recipient is not checked when empty
	Status    string          `json:"status"`          // pending, paid (verified), delivered
	CreatedAt int64           `json:"created_at"`      // unix seconds
	ExpiresAt int64           `json:"expires_at"`      // unix seconds
	Tx        *string         `json:"tx"`              // tx hash, set on settlement
	ProofURL  *string         `json:"proof_url"`       // set on delivery

	// settlement, copied from the verified transfer
	PaidAt      *int64           `json:"paid_at,omitempty"`
	PaidAmount  *decimal.Decimal `json:"paid_amount,omitempty"`
	PaidFrom    string           `json:"paid_from,omitempty"`
	PaidTo      string           `json:"paid_to,omitempty"`
	BlockNumber *uint64          `json:"block_number,omitempty"`
}

// Settled reports whether the invoice has been paid, delivered or not.
func (i *Invoice) Settled() bool {
	switch i.Status {
	case StatusPaid, StatusVerified, StatusDelivered:
		return true
	}
	return false
}

// Deliverable reports whether the invoice may move to delivered.
func (i *Invoice) Deliverable() bool {
	return i.Status == StatusPaid || i.Status == StatusVerified
}

// HasStatus matches status the way listings filter, paid also matches verified.
func (i *Invoice) HasStatus(status string) bool {
	if status == StatusPaid || status == StatusVerified {
		return i.Status == StatusPaid || i.Status == StatusVerified
	}
	return i.Status == status
}
