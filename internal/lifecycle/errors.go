package lifecycle

import (
	"fmt"
	"sort"
	"strings"
)

type Code string

const (
	CodeSessionMismatch Code = "SESSION_MISMATCH"
	CodeAlreadyFailed   Code = "ALREADY_FAILED"
	CodeInvalidState    Code = "INVALID_STATE"
)

// Error is returned for checkout-flow rule violations. Callers match it with
// errors.Is against the sentinels below or errors.As for the details.
type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

var (
	ErrSessionMismatch = &Error{Code: CodeSessionMismatch}
	ErrAlreadyFailed   = &Error{Code: CodeAlreadyFailed}
	ErrInvalidState    = &Error{Code: CodeInvalidState}
)

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Details[k])
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(parts, ", "))
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func sessionMismatch(shopID, cartID, expected, received string) *Error {
	return &Error{
		Code:    CodeSessionMismatch,
		Message: "checkout session does not match cart",
		Details: map[string]string{
			"shopId":          shopID,
			"cartId":          cartID,
			"expectedSession": expected,
			"receivedSession": received,
		},
	}
}
