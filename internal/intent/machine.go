package intent

import (
	"context"
	"crypto/rand"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"guto-paylink/internal/api"
	"guto-paylink/internal/interfaces"
	"guto-paylink/internal/models"
	"guto-paylink/internal/phone"
	"guto-paylink/internal/poller"
)

// Step is the current position in the payment form flow.
type Step string

const (
	StepAmount     Step = "amount"
	StepPhone      Step = "phone"
	StepAccount    Step = "account"
	StepSubmitting Step = "submitting"
	StepWaiting    Step = "waiting"
	StepSucceeded  Step = "succeeded"
	StepFailed     Step = "failed"
	StepTimedOut   Step = "timed_out"
)

// Config carries the per-session knobs supplied by the hosting page.
type Config struct {
	MinAmount     int64
	MaxAmount     int64
	Country       string
	Direction     string
	Memo          string
	FixedAmount   int64 // 0 means the payer chooses
	StartOnAmount bool
	Poll          poller.Options
	Verbose       bool
}

// Deps are the injected collaborators. Rand and Now default to crypto/rand
// and time.Now; tests swap them for deterministic fakes.
type Deps struct {
	Lookup  interfaces.NameLookupService
	Gateway interfaces.PaymentGatewayService
	Rand    io.Reader
	Now     func() time.Time
}

// Machine drives one payer session through amount, phone and account entry,
// submission, and the confirmation wait. All methods are safe for
// concurrent use; the machine serializes everything behind one mutex.
type Machine struct {
	mu      sync.Mutex
	cfg     Config
	profile models.UserProfile
	deps    Deps

	step        Step
	amount      int64
	payerPhone  string
	accountName string
	ref         string
	gatewayTxID string
	lastStatus  models.TransactionStatus
	lastError   string
	receipt     *models.PaidReceipt
}

// NewMachine creates a session for the given merchant profile. The
// transaction reference is generated here, once, and reused across every
// submission retry within the session.
func NewMachine(profile models.UserProfile, cfg Config, deps Deps) (*Machine, error) {
	if deps.Rand == nil {
		deps.Rand = rand.Reader
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.MinAmount <= 0 {
		cfg.MinAmount = 500
	}
	if cfg.MaxAmount <= 0 {
		cfg.MaxAmount = 50_000_000
	}

	ref, err := uuid.NewRandomFromReader(deps.Rand)
	if err != nil {
		return nil, err
	}

	m := &Machine{
		cfg:     cfg,
		profile: profile,
		deps:    deps,
		ref:     ref.String(),
		step:    StepAmount,
	}
	if cfg.FixedAmount > 0 {
		m.amount = cfg.FixedAmount
		if !cfg.StartOnAmount {
			m.step = StepPhone
		}
	}
	if cfg.Verbose {
		log.Printf("[INTENT] New session for @%s (ref %s, start step %s)", profile.Handle, m.ref, m.step)
	}
	return m, nil
}

// Step returns the current form step.
func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// TransactionReference returns the session's idempotency token.
func (m *Machine) TransactionReference() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ref
}

// Snapshot is a read-only view of the session for the status endpoint.
type Snapshot struct {
	Step       Step
	Amount     int64
	PayerPhone string
	LastStatus models.TransactionStatus
	LastError  string
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Step:       m.step,
		Amount:     m.amount,
		PayerPhone: m.payerPhone,
		LastStatus: m.lastStatus,
		LastError:  m.lastError,
	}
}

// EnterAmount records the payment amount and advances to the phone step.
// In fixed-amount mode the configured amount always wins and the step
// advances regardless of the submitted value.
func (m *Machine) EnterAmount(amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkEditableLocked(); err != nil {
		return err
	}
	if m.step != StepAmount {
		return ErrWrongStep
	}

	if m.cfg.FixedAmount > 0 {
		m.amount = m.cfg.FixedAmount
		m.step = StepPhone
		return nil
	}

	if amount < m.cfg.MinAmount {
		return &ValidationError{Field: "amount", Reason: "below minimum"}
	}
	if amount > m.cfg.MaxAmount {
		return &ValidationError{Field: "amount", Reason: "above maximum"}
	}

	m.amount = amount
	m.step = StepPhone
	return nil
}

// EnterPhone validates the payer's number and advances to the account step.
// The name lookup is best-effort: the step advances whether or not a name
// comes back, the difference is only whether the account field starts
// pre-filled.
func (m *Machine) EnterPhone(ctx context.Context, raw string) (prefill string, err error) {
	m.mu.Lock()
	if err := m.checkEditableLocked(); err != nil {
		m.mu.Unlock()
		return "", err
	}
	if m.step != StepPhone {
		m.mu.Unlock()
		return "", ErrWrongStep
	}
	canonical, ok := phone.Normalize(raw)
	if !ok {
		m.mu.Unlock()
		return "", &ValidationError{Field: "phone", Reason: "not a valid mobile number"}
	}
	m.payerPhone = canonical
	lookup := m.deps.Lookup
	verbose := m.cfg.Verbose
	m.mu.Unlock()

	// Lookup happens outside the lock; it is the only outbound call
	// permitted before the payer commits to paying.
	if lookup != nil {
		if name, found := lookup.LookupName(ctx, canonical); found {
			prefill = name
		} else if verbose {
			log.Printf("[INTENT] Name lookup miss for %s, falling back to manual entry", canonical)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prefill != "" && m.accountName == "" {
		m.accountName = prefill
	}
	m.step = StepAccount
	return prefill, nil
}

// EnterAccount records the payer's account display name.
func (m *Machine) EnterAccount(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkEditableLocked(); err != nil {
		return err
	}
	if m.step != StepAccount {
		return ErrWrongStep
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "account_name", Reason: "must not be empty"}
	}
	m.accountName = name
	return nil
}

// intentLocked assembles the PaymentIntent from the collected inputs. It
// fails with a ValidationError when any precondition for submission is
// missing. Callers must hold m.mu.
func (m *Machine) intentLocked() (models.PaymentIntent, error) {
	if strings.TrimSpace(m.accountName) == "" {
		return models.PaymentIntent{}, &ValidationError{Field: "account_name", Reason: "must not be empty"}
	}
	if _, ok := phone.Normalize(m.payerPhone); !ok {
		return models.PaymentIntent{}, &ValidationError{Field: "phone", Reason: "payer number missing or invalid"}
	}
	if _, ok := phone.Normalize(m.profile.Phone); !ok {
		return models.PaymentIntent{}, &ValidationError{Field: "recipient", Reason: "recipient number missing or invalid"}
	}
	if m.amount < m.cfg.MinAmount {
		return models.PaymentIntent{}, &ValidationError{Field: "amount", Reason: "below minimum"}
	}
	if strings.TrimSpace(m.profile.PaymentKey) == "" {
		return models.PaymentIntent{}, &ValidationError{Field: "payment_key", Reason: "missing recipient payment key"}
	}
	return models.PaymentIntent{
		Amount:               m.amount,
		PayerPhone:           m.payerPhone,
		AccountName:          m.accountName,
		TransactionReference: m.ref,
		RecipientPhone:       m.profile.Phone,
	}, nil
}

// Submit sends the payment request to the gateway. On acceptance the
// machine moves to the waiting step; on rejection or transport failure it
// returns to the account step with the same transaction reference, so a
// resubmission is idempotent from the gateway's point of view.
func (m *Machine) Submit(ctx context.Context) error {
	m.mu.Lock()
	if m.step == StepSubmitting || m.step == StepWaiting {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.step != StepAccount {
		m.mu.Unlock()
		return ErrWrongStep
	}

	intent, err := m.intentLocked()
	if err != nil {
		m.lastError = err.Error()
		m.mu.Unlock()
		return err
	}

	req := api.PayRequest{
		Mobile:               intent.PayerPhone,
		Amount:               intent.Amount,
		Memo:                 m.cfg.Memo,
		PaymentKey:           m.profile.PaymentKey,
		Recipient:            intent.RecipientPhone,
		TransactionReference: intent.TransactionReference,
		RecipientName:        m.profile.Name,
		Direction:            m.cfg.Direction,
		Country:              m.cfg.Country,
	}
	m.step = StepSubmitting
	m.lastError = ""
	gateway := m.deps.Gateway
	verbose := m.cfg.Verbose
	m.mu.Unlock()

	if verbose {
		log.Printf("[INTENT] Submitting payment of %d UGX from %s (ref %s)", req.Amount, req.Mobile, req.TransactionReference)
	}

	txID, err := gateway.SubmitPayment(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.step = StepAccount
		m.lastError = err.Error()
		if verbose {
			log.Printf("[INTENT] Submission failed (ref %s): %v", m.ref, err)
		}
		return err
	}

	m.gatewayTxID = txID
	m.step = StepWaiting
	m.lastStatus = models.StatusPending
	if verbose {
		log.Printf("[INTENT] Gateway accepted payment (ref %s, gateway tx %s), waiting for confirmation", m.ref, txID)
	}
	return nil
}

// AwaitConfirmation runs the status poller until the payment reaches a
// terminal state or the confirmation window closes. On a paid outcome the
// session's single PaidReceipt is created.
func (m *Machine) AwaitConfirmation(ctx context.Context) (Step, error) {
	m.mu.Lock()
	if m.step != StepWaiting {
		step := m.step
		m.mu.Unlock()
		return step, ErrWrongStep
	}
	statusURL := m.deps.Gateway.StatusURL(m.gatewayTxID)
	opts := m.cfg.Poll
	opts.Verbose = m.cfg.Verbose
	userTick := opts.OnTick
	opts.OnTick = func(s models.TransactionStatus) {
		m.mu.Lock()
		m.lastStatus = s
		m.mu.Unlock()
		if userTick != nil {
			userTick(s)
		}
	}
	m.mu.Unlock()

	outcome, last, err := poller.Poll(ctx, statusURL, opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		// Cancelled mid-wait; leave the step as is, the session is gone.
		return m.step, err
	}

	switch outcome {
	case poller.OutcomePaid:
		m.step = StepSucceeded
		if m.receipt == nil {
			m.receipt = &models.PaidReceipt{
				Amount:               m.amount,
				TransactionReference: m.ref,
				ProviderReference:    m.gatewayTxID,
				PaidAt:               m.deps.Now(),
				PayerPhone:           m.payerPhone,
				RecipientPhone:       m.profile.Phone,
				RecipientName:        m.profile.Name,
			}
		}
	case poller.OutcomeFailed:
		m.step = StepFailed
		m.lastError = "payment " + string(last)
	case poller.OutcomeTimeout:
		m.step = StepTimedOut
		m.lastError = "confirmation did not arrive in time"
	}
	return m.step, nil
}

// Receipt returns the session's PaidReceipt once the payment succeeded.
func (m *Machine) Receipt() (*models.PaidReceipt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.receipt == nil {
		return nil, false
	}
	return m.receipt, true
}

// Profile returns the merchant profile this session pays into.
func (m *Machine) Profile() models.UserProfile {
	return m.profile
}

// checkEditableLocked rejects form input while a submission or the
// confirmation wait is in flight. Callers must hold m.mu.
func (m *Machine) checkEditableLocked() error {
	if m.step == StepSubmitting || m.step == StepWaiting {
		return ErrBusy
	}
	return nil
}
