package commerce

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the commerce service.
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInsufficientPayment  = errors.New("insufficient payment")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrNothingToRefund      = errors.New("nothing to refund")
	ErrUnknownLedger        = errors.New("unknown ledger")
	ErrLedgerExists         = errors.New("ledger already exists")
	ErrInvalidCallerID      = errors.New("invalid caller id")
	ErrInvalidLedgerID      = errors.New("invalid ledger id")
	ErrInvalidTransferID    = errors.New("invalid transfer id")
	ErrInvalidProductName   = errors.New("invalid product name")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidMetadataJSON  = errors.New("invalid metadata json")
	ErrInvalidTransferKind  = errors.New("invalid transfer kind")
	ErrArithmeticOverflow   = errors.New("arithmetic overflow")
	ErrInconsistentState    = errors.New("inconsistent ledger state")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
