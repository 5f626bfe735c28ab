package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"

	"guto-paylink/internal/api"
	"guto-paylink/internal/models"
)

// MockPaymentGateway accepts payment requests and serves a scripted status
// progression from an embedded test server, so standalone mode exercises
// the real poller end to end.
type MockPaymentGateway struct {
	mu       sync.Mutex
	verbose  bool
	script   []models.TransactionStatus
	counter  int
	reads    map[string]int
	requests map[string]api.PayRequest // keyed by transaction reference
	server   *httptest.Server
}

// NewMockPaymentGateway creates a gateway whose status endpoint walks the
// given script, repeating the final entry forever. A nil script defaults to
// pending, approved, paid.
func NewMockPaymentGateway(script []models.TransactionStatus, verbose bool) *MockPaymentGateway {
	if len(script) == 0 {
		script = []models.TransactionStatus{
			models.StatusPending,
			models.StatusApproved,
			models.StatusPaid,
		}
	}
	g := &MockPaymentGateway{
		verbose:  verbose,
		script:   script,
		reads:    make(map[string]int),
		requests: make(map[string]api.PayRequest),
	}
	g.server = httptest.NewServer(http.HandlerFunc(g.serveStatus))
	return g
}

// Close shuts down the embedded status server.
func (g *MockPaymentGateway) Close() {
	g.server.Close()
}

func (g *MockPaymentGateway) SubmitPayment(ctx context.Context, req api.PayRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, seen := g.requests[req.TransactionReference]; seen {
		// Idempotent replay: same reference, same gateway transaction.
		if g.verbose {
			log.Printf("[MOCK] Gateway: Duplicate submission for ref %s, reusing transaction", req.TransactionReference)
		}
	} else {
		g.counter++
		g.requests[req.TransactionReference] = req
	}

	txID := fmt.Sprintf("MOCK-%04d", g.counter)
	if g.verbose {
		log.Printf("[MOCK] Gateway: Accepted %d UGX from %s (ref %s) as %s",
			req.Amount, req.Mobile, req.TransactionReference, txID)
	}
	return txID, nil
}

func (g *MockPaymentGateway) StatusURL(transactionID string) string {
	return g.server.URL + "/" + transactionID
}

// Requests returns every accepted pay request, for test assertions.
func (g *MockPaymentGateway) Requests() []api.PayRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]api.PayRequest, 0, len(g.requests))
	for _, r := range g.requests {
		out = append(out, r)
	}
	return out
}

func (g *MockPaymentGateway) serveStatus(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	idx := g.reads[r.URL.Path]
	g.reads[r.URL.Path]++
	g.mu.Unlock()

	if idx >= len(g.script) {
		idx = len(g.script) - 1
	}
	status := g.script[idx]

	if g.verbose {
		log.Printf("[MOCK] Gateway: Status read %d for %s -> %s", idx+1, r.URL.Path, status)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]any{"api_status": string(status)},
	})
}
