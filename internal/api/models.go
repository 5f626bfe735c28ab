package api

// Verification service API models

type VerifyRequest struct {
	Mobile string `json:"mobile"`
}

// VerifyResponse mirrors the verification service shape
// {"raw": {"contact": {"name": "..."}}}. Anything that does not decode into
// it counts as "no data".
type VerifyResponse struct {
	Raw struct {
		Contact struct {
			Name string `json:"name"`
		} `json:"contact"`
	} `json:"raw"`
}

// Payment gateway API models

type PayRequest struct {
	Mobile               string `json:"mobile"`
	Amount               int64  `json:"amount"`
	Memo                 string `json:"memo"`
	PaymentKey           string `json:"gutokey"`
	Recipient            string `json:"recipient"`
	TransactionReference string `json:"tx"`
	RecipientName        string `json:"recipient_name"`
	Direction            string `json:"direction"`
	Country              string `json:"country"`
}

// PayResponse wraps the processor envelope. Status values other than
// "success" mean the gateway declined the request.
type PayResponse struct {
	Munopay struct {
		Status        string `json:"status"`
		Message       string `json:"message"`
		TransactionID string `json:"transaction_id"`
	} `json:"munopay"`
}

// Session API models (Presentation Shell facing)

type StartSessionRequest struct {
	Name          string `json:"name" binding:"required"`
	PaymentKey    string `json:"payment_key" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	Handle        string `json:"handle,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Verified      bool   `json:"verified,omitempty"`
	InitialAmount int64  `json:"initial_amount,omitempty"`
	StartOnAmount bool   `json:"start_on_amount,omitempty"`
}

type StartSessionResponse struct {
	SessionID string `json:"session_id"`
	Step      string `json:"step"`
	Paylink   string `json:"paylink"`
}

type AmountRequest struct {
	Amount int64 `json:"amount"`
}

type PhoneRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type PhoneResponse struct {
	Step        string `json:"step"`
	PayerPhone  string `json:"payer_phone"`
	Carrier     string `json:"carrier"`
	PrefillName string `json:"prefill_name,omitempty"`
}

type AccountRequest struct {
	AccountName string `json:"account_name" binding:"required"`
}

type SessionStateResponse struct {
	SessionID  string `json:"session_id"`
	Step       string `json:"step"`
	Amount     int64  `json:"amount,omitempty"`
	LastStatus string `json:"last_status,omitempty"`
	Error      string `json:"error,omitempty"`
	Paylink    string `json:"paylink"`
}

// Merchant webhook payload, sent after a session reaches succeeded.
type WebhookPayload struct {
	TransactionReference string `json:"transaction_reference"`
	Status               string `json:"status"`
	Amount               int64  `json:"amount"`
	PayerPhone           string `json:"payer_phone"`
	Timestamp            string `json:"timestamp"`
}
