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
)

// RealNameLookup resolves account names through the verification service.
type RealNameLookup struct {
	verifyURL  string
	httpClient *http.Client
	verbose    bool
}

func NewRealNameLookup(verifyURL string, verbose bool) *RealNameLookup {
	return &RealNameLookup{
		verifyURL: verifyURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		verbose: verbose,
	}
}

// LookupName POSTs the canonical phone number to the verification service.
// One attempt, no retries; any transport error, non-2xx status or missing
// name field is a miss, never an error. The call has no side effects on the
// payee or the ledger.
func (r *RealNameLookup) LookupName(ctx context.Context, canonicalPhone string) (string, bool) {
	requestBody, err := json.Marshal(api.VerifyRequest{Mobile: canonicalPhone})
	if err != nil {
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.verifyURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if r.verbose {
			log.Printf("[REAL] Name lookup failed for %s: %v", canonicalPhone, err)
		}
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if r.verbose {
			log.Printf("[REAL] Name lookup returned status %d for %s", resp.StatusCode, canonicalPhone)
		}
		return "", false
	}

	var verifyResp api.VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return "", false
	}

	name := strings.TrimSpace(verifyResp.Raw.Contact.Name)
	if name == "" {
		return "", false
	}

	if r.verbose {
		log.Printf("[REAL] Name lookup resolved %s -> %s", canonicalPhone, name)
	}
	return name, true
}
