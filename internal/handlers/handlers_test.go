package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"guto-paylink/internal/api"
	"guto-paylink/internal/config"
	"guto-paylink/internal/models"
	"guto-paylink/internal/services/mock"
	"guto-paylink/internal/storage"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = 0
	cfg.StandaloneMode = true
	cfg.Payments.MinAmount = 500
	cfg.Payments.MaxAmount = 50_000_000
	cfg.Payments.Country = "UG"
	cfg.Payments.Direction = "paylink"
	cfg.Payments.Memo = "test memo"
	cfg.Link.Domain = "guto.me"
	cfg.SessionTTL = config.Duration(time.Minute)
	// fast confirmation loop for tests
	cfg.Poll.Interval = config.Duration(time.Millisecond)
	cfg.Poll.Step = config.Duration(time.Millisecond)
	cfg.Poll.MaxInterval = config.Duration(5 * time.Millisecond)
	cfg.Poll.Timeout = config.Duration(2 * time.Second)
	return cfg
}

func newTestRouter(t *testing.T, gw *mock.MockPaymentGateway) (*gin.Engine, *PaylinkHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	store := storage.NewSessionStore(cfg.SessionTTL.Std(), false)
	lookup := mock.NewMockNameLookup(false)
	handler := NewPaylinkHandler(cfg, store, lookup, gw, nil)

	router := gin.New()
	apiGroup := router.Group("/api")
	apiGroup.GET("/carrier", handler.CarrierHint)
	session := apiGroup.Group("/session")
	session.POST("", handler.StartSession)
	session.GET("/:id", handler.GetSession)
	session.POST("/:id/amount", handler.EnterAmount)
	session.POST("/:id/phone", handler.EnterPhone)
	session.POST("/:id/account", handler.EnterAccount)
	session.POST("/:id/pay", handler.Pay)
	session.GET("/:id/receipt", handler.Receipt)
	session.GET("/:id/receipt.svg", handler.ReceiptSVG)
	session.GET("/:id/receipt.png", handler.ReceiptPNG)
	session.GET("/:id/receipt.pdf", handler.ReceiptPDF)
	router.GET("/health", handler.HealthCheck)
	return router, handler
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func startSession(t *testing.T, router *gin.Engine, amount int64) api.StartSessionResponse {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/session", api.StartSessionRequest{
		Name:          "Okello Stores",
		PaymentKey:    "pk_live_okello",
		Phone:         "0771000222",
		Handle:        "okello",
		InitialAmount: amount,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("start session: status %d body %s", w.Code, w.Body.String())
	}
	var resp api.StartSessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	return resp
}

func TestStartSessionFixedAmount(t *testing.T) {
	gw := mock.NewMockPaymentGateway(nil, false)
	defer gw.Close()
	router, _ := newTestRouter(t, gw)

	resp := startSession(t, router, 2000)
	if resp.Step != "phone" {
		t.Errorf("fixed-amount session starts on %q, want phone", resp.Step)
	}
	if resp.Paylink != "https://guto.me/@okello?amount=2000" {
		t.Errorf("paylink = %q", resp.Paylink)
	}
}

func TestStartSessionRejectsBadRecipient(t *testing.T) {
	gw := mock.NewMockPaymentGateway(nil, false)
	defer gw.Close()
	router, _ := newTestRouter(t, gw)

	w := doJSON(t, router, http.MethodPost, "/api/session", api.StartSessionRequest{
		Name:       "Okello Stores",
		PaymentKey: "pk",
		Phone:      "12345",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAmountStepValidation(t *testing.T) {
	gw := mock.NewMockPaymentGateway(nil, false)
	defer gw.Close()
	router, _ := newTestRouter(t, gw)

	resp := startSession(t, router, 0)
	base := "/api/session/" + resp.SessionID

	if w := doJSON(t, router, http.MethodPost, base+"/amount", api.AmountRequest{Amount: 100}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("below-minimum amount: status %d, want 422", w.Code)
	}
	if w := doJSON(t, router, http.MethodPost, base+"/amount", api.AmountRequest{Amount: 500}); w.Code != http.StatusOK {
		t.Errorf("minimum amount: status %d, want 200", w.Code)
	}
}

func TestFullPaymentFlow(t *testing.T) {
	gw := mock.NewMockPaymentGateway([]models.TransactionStatus{
		models.StatusPending,
		models.StatusApproved,
		models.StatusPaid,
	}, false)
	defer gw.Close()
	router, _ := newTestRouter(t, gw)

	resp := startSession(t, router, 2000)
	base := "/api/session/" + resp.SessionID

	w := doJSON(t, router, http.MethodPost, base+"/phone", api.PhoneRequest{Phone: "0751 234 567"})
	if w.Code != http.StatusOK {
		t.Fatalf("phone step: status %d body %s", w.Code, w.Body.String())
	}
	var phoneResp api.PhoneResponse
	if err := json.Unmarshal(w.Body.Bytes(), &phoneResp); err != nil {
		t.Fatalf("decode phone response: %v", err)
	}
	if phoneResp.PayerPhone != "256751234567" {
		t.Errorf("payer phone = %q", phoneResp.PayerPhone)
	}
	if phoneResp.Carrier != "Airtel" {
		t.Errorf("carrier = %q, want Airtel", phoneResp.Carrier)
	}

	if w := doJSON(t, router, http.MethodPost, base+"/account", api.AccountRequest{AccountName: "ACHENG MARY"}); w.Code != http.StatusOK {
		t.Fatalf("account step: status %d body %s", w.Code, w.Body.String())
	}

	if w := doJSON(t, router, http.MethodPost, base+"/pay", nil); w.Code != http.StatusAccepted {
		t.Fatalf("pay: status %d body %s", w.Code, w.Body.String())
	}

	// the confirmation loop runs in the background; wait for a terminal step
	deadline := time.Now().Add(5 * time.Second)
	var state api.SessionStateResponse
	for {
		w := doJSON(t, router, http.MethodGet, base, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("get session: status %d", w.Code)
		}
		if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		if state.Step == "succeeded" || state.Step == "failed" || state.Step == "timed_out" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("confirmation never finished, last step %q", state.Step)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if state.Step != "succeeded" {
		t.Fatalf("final step = %q, want succeeded", state.Step)
	}

	// receipt record
	w = doJSON(t, router, http.MethodGet, base+"/receipt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("receipt: status %d", w.Code)
	}
	var rcpt models.PaidReceipt
	if err := json.Unmarshal(w.Body.Bytes(), &rcpt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if rcpt.Amount != 2000 {
		t.Errorf("receipt amount = %d", rcpt.Amount)
	}
	if rcpt.PayerPhone != "256751234567" {
		t.Errorf("receipt payer = %q", rcpt.PayerPhone)
	}

	// vector preview available immediately
	w = doJSON(t, router, http.MethodGet, base+"/receipt.svg", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("receipt.svg: status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "PAID") {
		t.Error("svg missing PAID badge")
	}

	// bitmap arrives asynchronously
	deadline = time.Now().Add(5 * time.Second)
	for {
		w = doJSON(t, router, http.MethodGet, base+"/receipt.png", nil)
		if w.Code == http.StatusOK {
			break
		}
		if w.Code != http.StatusConflict {
			t.Fatalf("receipt.png: status %d", w.Code)
		}
		if time.Now().After(deadline) {
			t.Fatal("rasterization never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("receipt.png is not a PNG")
	}

	// printable form
	w = doJSON(t, router, http.MethodGet, base+"/receipt.pdf", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("receipt.pdf: status %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF") {
		t.Error("receipt.pdf is not a PDF")
	}
}

func TestFailedPaymentHasNoReceipt(t *testing.T) {
	gw := mock.NewMockPaymentGateway([]models.TransactionStatus{
		models.StatusPending,
		models.StatusReversed,
	}, false)
	defer gw.Close()
	router, _ := newTestRouter(t, gw)

	resp := startSession(t, router, 2000)
	base := "/api/session/" + resp.SessionID
	doJSON(t, router, http.MethodPost, base+"/phone", api.PhoneRequest{Phone: "0751234567"})
	doJSON(t, router, http.MethodPost, base+"/account", api.AccountRequest{AccountName: "ACHENG MARY"})
	if w := doJSON(t, router, http.MethodPost, base+"/pay", nil); w.Code != http.StatusAccepted {
		t.Fatalf("pay: status %d", w.Code)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		w := doJSON(t, router, http.MethodGet, base, nil)
		var state api.SessionStateResponse
		json.Unmarshal(w.Body.Bytes(), &state)
		if state.Step == "failed" {
			break
		}
		if state.Step == "succeeded" || state.Step == "timed_out" {
			t.Fatalf("step = %q, want failed", state.Step)
		}
		if time.Now().After(deadline) {
			t.Fatal("confirmation never failed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if w := doJSON(t, router, http.MethodGet, base+"/receipt", nil); w.Code != http.StatusConflict {
		t.Errorf("receipt after failure: status %d, want 409", w.Code)
	}
}

func TestSessionNotFound(t *testing.T) {
	gw := mock.NewMockPaymentGateway(nil, false)
	defer gw.Close()
	router, _ := newTestRouter(t, gw)

	w := doJSON(t, router, http.MethodGet, "/api/session/no-such-session", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestCarrierHintEndpoint(t *testing.T) {
	gw := mock.NewMockPaymentGateway(nil, false)
	defer gw.Close()
	router, _ := newTestRouter(t, gw)

	w := doJSON(t, router, http.MethodGet, "/api/carrier?phone=0771234567", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "MTN") {
		t.Errorf("carrier body = %s", w.Body.String())
	}
}
