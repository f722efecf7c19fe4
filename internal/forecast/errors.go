package forecast

import "fmt"

// ErrorCode identifies a class of forecasting failure.
type ErrorCode string

const (
	ErrInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrInsufficientData    ErrorCode = "INSUFFICIENT_DATA"
	ErrModelNotFitted      ErrorCode = "MODEL_NOT_FITTED"
	ErrModelAccuracyTooLow ErrorCode = "MODEL_ACCURACY_LOW"
)

// Error is a structured error carrying a code plus machine-readable details
// so clients can self-correct (e.g. required vs. available data points).
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewInsufficientDataError reports how many data points were required vs. supplied.
func NewInsufficientDataError(required, available int) *Error {
	return &Error{
		Code: ErrInsufficientData,
		Message: fmt.Sprintf("insufficient data: need at least %d data points, got %d",
			required, available),
		Details: map[string]any{
			"required_points":  required,
			"available_points": available,
		},
	}
}

// NewInvalidInputError reports malformed or missing transaction data.
func NewInvalidInputError(msg string) *Error {
	return &Error{Code: ErrInvalidInput, Message: msg}
}

// NewModelNotFittedError reports a forecast requested before a successful fit.
func NewModelNotFittedError() *Error {
	return &Error{Code: ErrModelNotFitted, Message: "model must be fitted before forecasting"}
}

// NewAccuracyError reports a post-fit MAPE above the acceptable ceiling.
func NewAccuracyError(mape, ceiling float64) *Error {
	return &Error{
		Code:    ErrModelAccuracyTooLow,
		Message: fmt.Sprintf("model accuracy too low: MAPE %.2f exceeds ceiling %.2f", mape, ceiling),
		Details: map[string]any{
			"mape":    mape,
			"ceiling": ceiling,
		},
	}
}

// CodeOf returns the error code if err is a forecast Error, or "" otherwise.
func CodeOf(err error) ErrorCode {
	if fe, ok := err.(*Error); ok {
		return fe.Code
	}
	return ""
}
