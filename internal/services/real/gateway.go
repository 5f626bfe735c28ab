package real

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"guto-paylink/internal/api"
	"guto-paylink/internal/intent"
)

// RealPaymentGateway talks to the mobile-money processor.
type RealPaymentGateway struct {
	payURL     string
	statusBase string
	httpClient *http.Client
	verbose    bool
}

func NewRealPaymentGateway(payURL, statusBase string, verbose bool) *RealPaymentGateway {
	return &RealPaymentGateway{
		payURL:     payURL,
		statusBase: strings.TrimSuffix(statusBase, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		verbose: verbose,
	}
}

// SubmitPayment sends one payment request to the gateway. Acceptance means
// a 2xx transport response whose envelope status is "success"; everything
// else is a rejection or a transport failure, both retryable with the same
// transaction reference.
func (r *RealPaymentGateway) SubmitPayment(ctx context.Context, payReq api.PayRequest) (string, error) {
	requestBody, err := json.Marshal(payReq)
	if err != nil {
		return "", &intent.TransportFailure{Op: "payment submission", Err: err}
	}

	if r.verbose {
		log.Printf("[REAL] Gateway: Submitting payment (ref %s, %d UGX)", payReq.TransactionReference, payReq.Amount)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.payURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", &intent.TransportFailure{Op: "payment submission", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", &intent.TransportFailure{Op: "payment submission", Err: err}
	}
	defer resp.Body.Close()

	var payResp api.PayResponse
	if err := json.NewDecoder(resp.Body).Decode(&payResp); err != nil {
		return "", &intent.TransportFailure{Op: "payment submission", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if r.verbose {
			log.Printf("[REAL] Gateway: Pay endpoint returned status %d", resp.StatusCode)
		}
		return "", &intent.GatewayRejection{Message: payResp.Munopay.Message}
	}

	if payResp.Munopay.Status != "success" {
		if r.verbose {
			log.Printf("[REAL] Gateway: Payment declined (ref %s): %s", payReq.TransactionReference, payResp.Munopay.Message)
		}
		return "", &intent.GatewayRejection{Message: payResp.Munopay.Message}
	}

	if r.verbose {
		log.Printf("[REAL] Gateway: Payment accepted (ref %s, gateway tx %s)", payReq.TransactionReference, payResp.Munopay.TransactionID)
	}
	return payResp.Munopay.TransactionID, nil
}

// StatusURL returns the endpoint the confirmation poller reads.
func (r *RealPaymentGateway) StatusURL(transactionID string) string {
	return r.statusBase + "/" + transactionID
}
