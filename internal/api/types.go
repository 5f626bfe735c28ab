package api

// Common API types and enums

// APIError represents RESTful error response structure
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Common error codes
const (
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"
	ErrorCodeValidationFailed   = "VALIDATION_FAILED"
	ErrorCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrorCodeWrongStep          = "WRONG_STEP"
	ErrorCodeGatewayRejected    = "GATEWAY_REJECTED"
	ErrorCodeGatewayUnreachable = "GATEWAY_UNREACHABLE"
	ErrorCodeReceiptNotReady    = "RECEIPT_NOT_READY"
	ErrorCodeInternalError      = "INTERNAL_ERROR"
)
