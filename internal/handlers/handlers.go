package handlers

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"guto-paylink/internal/api"
	"guto-paylink/internal/config"
	"guto-paylink/internal/intent"
	"guto-paylink/internal/interfaces"
	"guto-paylink/internal/models"
	"guto-paylink/internal/paylink"
	"guto-paylink/internal/phone"
	"guto-paylink/internal/poller"
	"guto-paylink/internal/receipt"
	"guto-paylink/internal/storage"
)

// PaylinkHandler exposes the payment session lifecycle over HTTP.
type PaylinkHandler struct {
	config   *config.Config
	store    *storage.SessionStore
	lookup   interfaces.NameLookupService
	gateway  interfaces.PaymentGatewayService
	notifier interfaces.WebhookNotifier
	links    *paylink.Builder
	theme    receipt.Theme

	mu      sync.Mutex
	outputs map[string]*receipt.Output // session id -> rendered receipt
}

func NewPaylinkHandler(
	cfg *config.Config,
	store *storage.SessionStore,
	lookup interfaces.NameLookupService,
	gateway interfaces.PaymentGatewayService,
	notifier interfaces.WebhookNotifier,
) *PaylinkHandler {
	return &PaylinkHandler{
		config:   cfg,
		store:    store,
		lookup:   lookup,
		gateway:  gateway,
		notifier: notifier,
		links:    paylink.NewBuilder(cfg.Link.Domain),
		theme: receipt.Theme{
			BrandName:  cfg.Branding.Name,
			Background: cfg.Branding.Background,
			Card:       cfg.Branding.Card,
			Accent:     cfg.Branding.Accent,
			Text:       cfg.Branding.Text,
		},
		outputs: make(map[string]*receipt.Output),
	}
}

// POST /api/session - start a payer session for a merchant page view
func (h *PaylinkHandler) StartSession(c *gin.Context) {
	var req api.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{
			Error: "Invalid request format",
			Code:  api.ErrorCodeInvalidRequest,
		})
		return
	}

	recipient, ok := phone.Normalize(req.Phone)
	if !ok {
		c.JSON(http.StatusBadRequest, api.APIError{
			Error: "Invalid recipient phone number",
			Code:  api.ErrorCodeValidationFailed,
		})
		return
	}

	profile := models.UserProfile{
		Name:       req.Name,
		PaymentKey: req.PaymentKey,
		Phone:      recipient,
		Handle:     req.Handle,
		AvatarURL:  req.AvatarURL,
		Verified:   req.Verified,
	}

	cfg := intent.Config{
		MinAmount:     h.config.Payments.MinAmount,
		MaxAmount:     h.config.Payments.MaxAmount,
		Country:       h.config.Payments.Country,
		Direction:     h.config.Payments.Direction,
		Memo:          h.config.Payments.Memo,
		FixedAmount:   req.InitialAmount,
		StartOnAmount: req.StartOnAmount,
		Verbose:       h.config.Server.Verbose,
		Poll: poller.Options{
			Interval:    h.config.Poll.Interval.Std(),
			Step:        h.config.Poll.Step.Std(),
			MaxInterval: h.config.Poll.MaxInterval.Std(),
			Timeout:     h.config.Poll.Timeout.Std(),
		},
	}

	machine, err := intent.NewMachine(profile, cfg, intent.Deps{
		Lookup:  h.lookup,
		Gateway: h.gateway,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.APIError{
			Error: "Failed to start session",
			Code:  api.ErrorCodeInternalError,
		})
		return
	}

	sessionID, err := uuid.NewRandomFromReader(rand.Reader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.APIError{
			Error: "Failed to start session",
			Code:  api.ErrorCodeInternalError,
		})
		return
	}

	id := sessionID.String()
	if err := h.store.Put(id, machine); err != nil {
		c.JSON(http.StatusInternalServerError, api.APIError{
			Error: err.Error(),
			Code:  api.ErrorCodeInternalError,
		})
		return
	}

	c.JSON(http.StatusCreated, api.StartSessionResponse{
		SessionID: id,
		Step:      string(machine.Step()),
		Paylink:   h.links.Build(req.Handle, req.InitialAmount),
	})
}

func (h *PaylinkHandler) session(c *gin.Context) (*intent.Machine, string, bool) {
	id := c.Param("id")
	machine, ok := h.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, api.APIError{
			Error: "Session not found",
			Code:  api.ErrorCodeSessionNotFound,
		})
		return nil, "", false
	}
	return machine, id, true
}

// GET /api/session/:id - current step and last observed status
func (h *PaylinkHandler) GetSession(c *gin.Context) {
	machine, id, ok := h.session(c)
	if !ok {
		return
	}

	snap := machine.Snapshot()
	profile := machine.Profile()
	c.JSON(http.StatusOK, api.SessionStateResponse{
		SessionID:  id,
		Step:       string(snap.Step),
		Amount:     snap.Amount,
		LastStatus: string(snap.LastStatus),
		Error:      snap.LastError,
		Paylink:    h.links.Build(profile.Handle, 0),
	})
}

// POST /api/session/:id/amount
func (h *PaylinkHandler) EnterAmount(c *gin.Context) {
	machine, _, ok := h.session(c)
	if !ok {
		return
	}

	var req api.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{
			Error: "Invalid request format",
			Code:  api.ErrorCodeInvalidRequest,
		})
		return
	}

	if err := machine.EnterAmount(req.Amount); err != nil {
		h.stepError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": string(machine.Step())})
}

// POST /api/session/:id/phone
func (h *PaylinkHandler) EnterPhone(c *gin.Context) {
	machine, _, ok := h.session(c)
	if !ok {
		return
	}

	var req api.PhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{
			Error: "Invalid request format",
			Code:  api.ErrorCodeInvalidRequest,
		})
		return
	}

	prefill, err := machine.EnterPhone(c.Request.Context(), req.Phone)
	if err != nil {
		h.stepError(c, err)
		return
	}

	canonical, _ := phone.Normalize(req.Phone)
	c.JSON(http.StatusOK, api.PhoneResponse{
		Step:        string(machine.Step()),
		PayerPhone:  canonical,
		Carrier:     phone.Carrier(canonical),
		PrefillName: prefill,
	})
}

// POST /api/session/:id/account
func (h *PaylinkHandler) EnterAccount(c *gin.Context) {
	machine, _, ok := h.session(c)
	if !ok {
		return
	}

	var req api.AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.APIError{
			Error: "Invalid request format",
			Code:  api.ErrorCodeInvalidRequest,
		})
		return
	}

	if err := machine.EnterAccount(req.AccountName); err != nil {
		h.stepError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": string(machine.Step())})
}

// POST /api/session/:id/pay - submit to the gateway and begin the
// confirmation wait in the background
func (h *PaylinkHandler) Pay(c *gin.Context) {
	machine, id, ok := h.session(c)
	if !ok {
		return
	}

	if err := machine.Submit(c.Request.Context()); err != nil {
		h.stepError(c, err)
		return
	}

	go h.confirm(id, machine)

	c.JSON(http.StatusAccepted, gin.H{
		"step":                  string(machine.Step()),
		"transaction_reference": machine.TransactionReference(),
	})
}

// confirm runs the poller to a terminal outcome and fires the merchant
// webhook on success. Detached from the request so the Presentation Shell
// polls GET /api/session/:id for progress.
func (h *PaylinkHandler) confirm(id string, machine *intent.Machine) {
	step, err := machine.AwaitConfirmation(context.Background())
	if err != nil {
		log.Printf("[HANDLER] Confirmation aborted for session %s: %v", id, err)
		return
	}

	if h.config.Server.Verbose {
		log.Printf("[HANDLER] Session %s finished confirmation with step %s", id, step)
	}

	if step != intent.StepSucceeded {
		return
	}

	rcpt, ok := machine.Receipt()
	if !ok {
		return
	}

	// Pre-render the receipt and kick off the bitmap build so share and
	// download are usually ready by the time the shell asks.
	out := h.receiptOutput(id, machine, rcpt)
	go func() {
		if _, err := out.Rasterize(context.Background()); err != nil && !errors.Is(err, receipt.ErrRasterInFlight) {
			log.Printf("[HANDLER] Receipt rasterization degraded for session %s: %v", id, err)
		}
	}()

	if h.notifier != nil && h.config.Merchant.WebhookURL != "" {
		payload := api.WebhookPayload{
			TransactionReference: rcpt.TransactionReference,
			Status:               string(models.StatusPaid),
			Amount:               rcpt.Amount,
			PayerPhone:           rcpt.PayerPhone,
			Timestamp:            rcpt.PaidAt.UTC().Format(time.RFC3339),
		}
		if err := h.notifier.NotifyPaid(h.config.Merchant.WebhookURL, payload); err != nil {
			log.Printf("[HANDLER] Merchant webhook failed for session %s: %v", id, err)
		}
	}
}

// receiptOutput returns the session's rendered receipt, creating it on
// first use and tying its raster lifetime to the session.
func (h *PaylinkHandler) receiptOutput(id string, machine *intent.Machine, rcpt *models.PaidReceipt) *receipt.Output {
	h.mu.Lock()
	defer h.mu.Unlock()

	if out, ok := h.outputs[id]; ok {
		return out
	}

	profile := machine.Profile()
	link := h.links.Build(profile.Handle, 0)
	out := receipt.Render(rcpt, profile, link, h.theme)
	h.outputs[id] = out

	h.store.AddCloser(id, func() {
		out.Close()
		h.mu.Lock()
		delete(h.outputs, id)
		h.mu.Unlock()
	})
	return out
}

func (h *PaylinkHandler) paidReceipt(c *gin.Context) (*intent.Machine, string, *models.PaidReceipt, bool) {
	machine, id, ok := h.session(c)
	if !ok {
		return nil, "", nil, false
	}
	rcpt, ok := machine.Receipt()
	if !ok {
		c.JSON(http.StatusConflict, api.APIError{
			Error: "Payment not confirmed yet",
			Code:  api.ErrorCodeReceiptNotReady,
		})
		return nil, "", nil, false
	}
	return machine, id, rcpt, true
}

// GET /api/session/:id/receipt - the PaidReceipt record
func (h *PaylinkHandler) Receipt(c *gin.Context) {
	_, _, rcpt, ok := h.paidReceipt(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rcpt)
}

// GET /api/session/:id/receipt.svg - vector preview, always available once paid
func (h *PaylinkHandler) ReceiptSVG(c *gin.Context) {
	machine, id, rcpt, ok := h.paidReceipt(c)
	if !ok {
		return
	}
	out := h.receiptOutput(id, machine, rcpt)
	c.Data(http.StatusOK, "image/svg+xml", out.SVG())
}

// GET /api/session/:id/receipt.png - bitmap for share/download; 409 until
// the asynchronous rasterization has completed
func (h *PaylinkHandler) ReceiptPNG(c *gin.Context) {
	machine, id, rcpt, ok := h.paidReceipt(c)
	if !ok {
		return
	}
	out := h.receiptOutput(id, machine, rcpt)

	handle, ok := out.Raster()
	if !ok {
		go func() {
			if _, err := out.Rasterize(context.Background()); err != nil && !errors.Is(err, receipt.ErrRasterInFlight) {
				log.Printf("[HANDLER] Receipt rasterization degraded for session %s: %v", id, err)
			}
		}()
		c.JSON(http.StatusConflict, api.APIError{
			Error: "Receipt image still rendering",
			Code:  api.ErrorCodeReceiptNotReady,
		})
		return
	}

	data := handle.PNG()
	if data == nil {
		c.JSON(http.StatusConflict, api.APIError{
			Error: "Receipt image was released",
			Code:  api.ErrorCodeReceiptNotReady,
		})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+receipt.DownloadFilename+`"`)
	c.Data(http.StatusOK, "image/png", data)
}

// GET /api/session/:id/receipt.pdf - printable receipt
func (h *PaylinkHandler) ReceiptPDF(c *gin.Context) {
	machine, _, rcpt, ok := h.paidReceipt(c)
	if !ok {
		return
	}
	profile := machine.Profile()
	data, err := receipt.GeneratePDF(rcpt, profile, h.links.Build(profile.Handle, 0), h.theme)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.APIError{
			Error: err.Error(),
			Code:  api.ErrorCodeInternalError,
		})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="guto-receipt.pdf"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// GET /api/carrier?phone= - advisory carrier hint for the phone step
func (h *PaylinkHandler) CarrierHint(c *gin.Context) {
	canonical, ok := phone.Normalize(c.Query("phone"))
	if !ok {
		c.JSON(http.StatusBadRequest, api.APIError{
			Error: "Invalid phone number",
			Code:  api.ErrorCodeValidationFailed,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"phone":   canonical,
		"carrier": phone.Carrier(canonical),
	})
}

// GET /health
func (h *PaylinkHandler) HealthCheck(c *gin.Context) {
	total, expired := h.store.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"sessions":         total,
		"sessions_expired": expired,
	})
}

// stepError maps machine errors onto HTTP responses.
func (h *PaylinkHandler) stepError(c *gin.Context, err error) {
	var verr *intent.ValidationError
	var rej *intent.GatewayRejection
	var transport *intent.TransportFailure

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, api.APIError{
			Error:   verr.Error(),
			Code:    api.ErrorCodeValidationFailed,
			Details: verr.Field,
		})
	case errors.As(err, &rej):
		c.JSON(http.StatusBadGateway, api.APIError{
			Error: rej.Error(),
			Code:  api.ErrorCodeGatewayRejected,
		})
	case errors.As(err, &transport):
		c.JSON(http.StatusBadGateway, api.APIError{
			Error: "Could not reach the payment gateway",
			Code:  api.ErrorCodeGatewayUnreachable,
		})
	case errors.Is(err, intent.ErrBusy):
		c.JSON(http.StatusConflict, api.APIError{
			Error: err.Error(),
			Code:  api.ErrorCodeWrongStep,
		})
	case errors.Is(err, intent.ErrWrongStep):
		c.JSON(http.StatusConflict, api.APIError{
			Error: err.Error(),
			Code:  api.ErrorCodeWrongStep,
		})
	default:
		c.JSON(http.StatusInternalServerError, api.APIError{
			Error: err.Error(),
			Code:  api.ErrorCodeInternalError,
		})
	}
}
