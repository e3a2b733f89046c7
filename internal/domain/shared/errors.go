package shared

import "fmt"

// Error is a categorised CRM failure. Errors with the same Code match under
// errors.Is, so detail added by Wrapf keeps the category.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error carrying the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Wrapf returns e with a formatted detail appended to its message
func (e *Error) Wrapf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprintf(format, args...))
}

var (
	ErrNotFound            = newError("not_found", "record not found")
	ErrInvalidInput        = newError("invalid_input", "invalid input")
	ErrConstraintViolation = newError("constraint_violation", "database constraint violated")

	// Record validation
	ErrRequiredField     = newError("required_field", "required field missing")
	ErrDanglingReference = newError("dangling_reference", "reference to a missing row")
	ErrReferenced        = newError("referenced", "row still referenced")

	// Registry lookups and declarations
	ErrInvalidSchema     = newError("invalid_schema", "invalid schema declaration")
	ErrUnknownEntity     = newError("unknown_entity", "unknown entity")
	ErrUnknownNavigation = newError("unknown_navigation", "unknown navigation")
)
