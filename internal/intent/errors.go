package intent

import "fmt"

// ValidationError reports a bad form value. The step does not advance and
// the user can correct the input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// GatewayRejection means the gateway answered but declined the payment
// request. The machine returns to the account step; resubmitting reuses the
// same transaction reference.
type GatewayRejection struct {
	Message string
}

func (e *GatewayRejection) Error() string {
	if e.Message == "" {
		return "payment request declined by gateway"
	}
	return "payment request declined: " + e.Message
}

// TransportFailure wraps a network or decode error on an outbound call.
type TransportFailure struct {
	Op  string
	Err error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportFailure) Unwrap() error { return e.Err }

// ErrBusy is returned when form input arrives while a submission or
// confirmation wait is in flight.
var ErrBusy = fmt.Errorf("payment in progress, inputs are locked")

// ErrWrongStep is returned when an operation does not match the current step.
var ErrWrongStep = fmt.Errorf("operation not valid for current step")
