package poller

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"guto-paylink/internal/models"
)

// Outcome is the final verdict of a polling run.
type Outcome string

const (
	OutcomePaid    Outcome = "paid"
	OutcomeFailed  Outcome = "failed"
	OutcomeTimeout Outcome = "timeout"
)

// Default tuning for the confirmation loop.
const (
	DefaultInterval    = 3 * time.Second
	DefaultStep        = 1 * time.Second
	DefaultMaxInterval = 7 * time.Second
	DefaultTimeout     = 180 * time.Second
)

// Options configures a polling run. Zero values fall back to the defaults
// above. Sleep and Now exist so tests can drive the loop deterministically.
type Options struct {
	Interval    time.Duration
	Step        time.Duration
	MaxInterval time.Duration
	Timeout     time.Duration

	// OnTick receives every observed status in issuance order, including
	// transient unknowns. Never called after cancellation or after the
	// terminal result has been decided.
	OnTick func(models.TransactionStatus)

	Client  *http.Client
	Sleep   func(ctx context.Context, d time.Duration) error
	Now     func() time.Time
	Verbose bool
}

func (o *Options) fillDefaults() {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Step <= 0 {
		o.Step = DefaultStep
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = DefaultMaxInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll repeatedly GETs statusURL until a terminal status is observed, the
// timeout window elapses, or ctx is cancelled. The last observed status is
// returned alongside the outcome; on cancellation the error is ctx.Err()
// and the outcome is empty.
//
// Per-iteration rules: a non-2xx response other than 404 is a transient
// read failure; 404 means the record is not visible yet and counts as
// pending; an unparseable body counts as unknown and keeps the loop
// running. The wait between attempts starts at Interval and grows by Step
// per iteration up to MaxInterval.
func Poll(ctx context.Context, statusURL string, opts Options) (Outcome, models.TransactionStatus, error) {
	opts.fillDefaults()

	deadline := opts.Now().Add(opts.Timeout)
	interval := opts.Interval
	last := models.StatusUnknown

	for {
		if err := ctx.Err(); err != nil {
			return "", last, err
		}
		if !opts.Now().Before(deadline) {
			if opts.Verbose {
				log.Printf("[POLLER] Confirmation window elapsed for %s (last status: %s)", statusURL, last)
			}
			return OutcomeTimeout, last, nil
		}

		status := fetchStatus(ctx, opts.Client, statusURL, opts.Verbose)

		// A request aborted by cancellation or by the deadline must not
		// produce a tick.
		if err := ctx.Err(); err != nil {
			return "", last, err
		}
		if !opts.Now().Before(deadline) {
			return OutcomeTimeout, last, nil
		}

		last = status
		if opts.OnTick != nil {
			opts.OnTick(status)
		}

		switch {
		case status == models.StatusPaid:
			return OutcomePaid, status, nil
		case status.IsFailure():
			if opts.Verbose {
				log.Printf("[POLLER] Terminal failure status %q from %s", status, statusURL)
			}
			return OutcomeFailed, status, nil
		}

		if err := opts.Sleep(ctx, interval); err != nil {
			return "", last, err
		}
		if interval += opts.Step; interval > opts.MaxInterval {
			interval = opts.MaxInterval
		}
	}
}

// fetchStatus performs one status read. Every failure mode degrades to a
// non-terminal status so a single bad read never ends the loop.
func fetchStatus(ctx context.Context, client *http.Client, statusURL string, verbose bool) models.TransactionStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return models.StatusUnknown
	}

	resp, err := client.Do(req)
	if err != nil {
		if verbose {
			log.Printf("[POLLER] Status read failed (transient): %v", err)
		}
		return models.StatusUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Record not visible on the gateway yet.
		return models.StatusPending
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if verbose {
			log.Printf("[POLLER] Status endpoint returned %d (transient)", resp.StatusCode)
		}
		return models.StatusUnknown
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.StatusUnknown
	}
	return extractStatus(body)
}

// extractStatus digs the status field out of the response body. Gateways
// have shipped several envelope shapes, so the field is looked up as
// data.api_status, transaction.api_status, api_status and finally status;
// the first match wins and matching is case-insensitive.
func extractStatus(body []byte) models.TransactionStatus {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.StatusUnknown
	}

	if raw, ok := nestedString(doc, "data", "api_status"); ok {
		return models.ParseStatus(raw)
	}
	if raw, ok := nestedString(doc, "transaction", "api_status"); ok {
		return models.ParseStatus(raw)
	}
	if raw, ok := topString(doc, "api_status"); ok {
		return models.ParseStatus(raw)
	}
	if raw, ok := topString(doc, "status"); ok {
		return models.ParseStatus(raw)
	}
	return models.StatusUnknown
}

func nestedString(doc map[string]json.RawMessage, outer, inner string) (string, bool) {
	rawOuter, ok := doc[outer]
	if !ok {
		return "", false
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(rawOuter, &nested); err != nil {
		return "", false
	}
	return topString(nested, inner)
}

func topString(doc map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := doc[key]
	if !ok {
		// Field names are matched case-insensitively as a fallback.
		for k, v := range doc {
			if strings.EqualFold(k, key) {
				raw, ok = v, true
				break
			}
		}
		if !ok {
			return "", false
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
