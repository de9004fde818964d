package plaid

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/plaid/plaid-go/v41/plaid"
)

// Error codes the services branch on.
const (
	CodeMutationDuringPagination = "TRANSACTIONS_SYNC_MUTATION_DURING_PAGINATION"
	CodeProductNotEnabled        = "PRODUCT_NOT_ENABLED"
	CodeProductNotSupported      = "PRODUCT_NOT_SUPPORTED"
)

// Error is an upstream failure. Status is 0 when no response was received.
type Error struct {
	Op      string
	Status  int
	Code    string
	Type    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("plaid %s: status %d: %s: %s", e.Op, e.Status, e.Code, e.Message)
	}
	if e.Status != 0 {
		return fmt.Sprintf("plaid %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("plaid %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsClientError reports a bad-request or unauthorized failure, meaning the
// stored credential can no longer be used.
func (e *Error) IsClientError() bool {
	return e.Status == http.StatusBadRequest || e.Status == http.StatusUnauthorized
}

func (e *Error) IsForbidden() bool {
	return e.Status == http.StatusForbidden
}

// IsProductNotEnabled reports a failure caused by a product the item has
// not been granted.
func (e *Error) IsProductNotEnabled() bool {
	return e.Code == CodeProductNotEnabled || e.Code == CodeProductNotSupported
}

// AsError unwraps err into an *Error.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// HasCode reports whether err is an upstream failure with the given code.
func HasCode(err error, code string) bool {
	perr, ok := AsError(err)
	return ok && perr.Code == code
}

func wrapError(op string, resp *http.Response, err error) error {
	out := &Error{Op: op, Err: err}
	if resp != nil {
		out.Status = resp.StatusCode
	}
	if body, convErr := plaid.ToPlaidError(err); convErr == nil {
		out.Code = body.GetErrorCode()
		out.Type = string(body.GetErrorType())
		out.Message = body.GetErrorMessage()
	}
	return out
}
