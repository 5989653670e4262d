package marketplace

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned on any 401. The caller must re-authenticate;
// retrying with the same token is never correct.
var ErrSessionExpired = errors.New("session expired, please log in again")

// Cancel classification sentinels, matched with errors.Is.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrAlreadyCancelled  = errors.New("order already cancelled")
	ErrCancelNotAccepted = errors.New("cancellation not accepted")
)

// Server error codes this client maps to specific messages. Anything else
// falls through with the raw server detail.
const (
	CodeInsufficientBalance = "insufficient_balance"
	CodeOrderNotFound       = "order_not_found"
	CodeAlreadyCancelled    = "order_already_cancelled"
)

// APIError is a structured non-2xx response from the marketplace.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("marketplace: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("marketplace: %s (%d)", e.Message, e.Status)
}

// AsAPIError unwraps err into an *APIError if one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
