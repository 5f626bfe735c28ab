package interfaces

import (
	"context"

	"guto-paylink/internal/api"
)

// NameLookupService resolves a canonical phone number to an account display
// name via the external verification service. A miss is not an error:
// implementations return ("", false) and callers fall back to manual entry.
// This is the only outbound call allowed before the payer commits to paying.
type NameLookupService interface {
	LookupName(ctx context.Context, canonicalPhone string) (string, bool)
}

// PaymentGatewayService submits payment requests to the mobile-money
// processor and exposes where to poll for confirmation.
type PaymentGatewayService interface {
	// SubmitPayment sends one payment request. It returns the
	// gateway-side transaction id on acceptance. A declined request
	// surfaces as *intent.GatewayRejection, transport problems as
	// *intent.TransportFailure (both defined next to the state machine).
	SubmitPayment(ctx context.Context, req api.PayRequest) (string, error)

	// StatusURL returns the endpoint the poller should GET for the given
	// gateway transaction id.
	StatusURL(transactionID string) string
}

// WebhookNotifier tells the merchant's backend about a completed payment.
// Best-effort: failures are logged, never propagated to the payer flow.
type WebhookNotifier interface {
	NotifyPaid(webhookURL string, payload api.WebhookPayload) error
}
