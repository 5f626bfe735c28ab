package models

import (
	"strings"
	"time"
)

// UserProfile describes the merchant whose paylink page is being viewed.
// It is supplied externally per page view and never modified by the core.
type UserProfile struct {
	Name       string `json:"name"`
	PaymentKey string `json:"payment_key"`
	Phone      string `json:"phone"` // canonical recipient number
	Handle     string `json:"handle,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	Verified   bool   `json:"verified,omitempty"`
}

// PaymentIntent is the complete payment request assembled by the form steps.
// The TransactionReference is generated once per form session and reused
// across retries so the gateway can deduplicate.
type PaymentIntent struct {
	Amount               int64  `json:"amount"` // whole UGX
	PayerPhone           string `json:"payer_phone"`
	AccountName          string `json:"account_name"`
	TransactionReference string `json:"transaction_reference"`
	RecipientPhone       string `json:"recipient_phone"`
}

// TransactionStatus is the gateway-reported state of a submitted payment.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusApproved  TransactionStatus = "approved"
	StatusPaid      TransactionStatus = "paid"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
	StatusReversed  TransactionStatus = "reversed"
	StatusError     TransactionStatus = "error"
	StatusUnknown   TransactionStatus = "unknown"
)

// ParseStatus folds a raw gateway status string into a TransactionStatus.
// Anything unrecognized becomes StatusUnknown, which callers treat as
// transient rather than terminal.
func ParseStatus(raw string) TransactionStatus {
	switch TransactionStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending
	case StatusApproved:
		return StatusApproved
	case StatusPaid:
		return StatusPaid
	case StatusFailed:
		return StatusFailed
	case StatusCancelled:
		return StatusCancelled
	case StatusReversed:
		return StatusReversed
	case StatusError:
		return StatusError
	default:
		return StatusUnknown
	}
}

// IsFailure reports whether the status belongs to the failure class that
// terminates polling.
func (s TransactionStatus) IsFailure() bool {
	switch s {
	case StatusFailed, StatusCancelled, StatusReversed, StatusError:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the confirmation wait.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusPaid || s.IsFailure()
}

// PaidReceipt is created exactly once per completed intent, after the poller
// observes a paid status. It is immutable and never persisted server-side.
type PaidReceipt struct {
	Amount               int64     `json:"amount"`
	TransactionReference string    `json:"transaction_reference"`
	ProviderReference    string    `json:"provider_reference,omitempty"`
	PaidAt               time.Time `json:"paid_at"`
	PayerPhone           string    `json:"payer_phone"`
	RecipientPhone       string    `json:"recipient_phone"`
	RecipientName        string    `json:"recipient_name"`
}
