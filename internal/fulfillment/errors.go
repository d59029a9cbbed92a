package fulfillment

import (
	"errors"

	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
)

var (
	ErrRecordNotFound       = errors.New("fulfillment record not found")
	ErrOutOfRange           = errors.New("step out of range")
	ErrInvalidOutcome       = errors.New("invalid step outcome")
	ErrMissingDetails       = errors.New("details required")
	ErrStepSkipped          = errors.New("step skipped")
	ErrPriorStepIncomplete  = errors.New("prior step incomplete")
	ErrNotCurrentStep       = errors.New("only the current step may fail")
	ErrAlreadyTerminal      = errors.New("fulfillment record already terminal")
	ErrStepAlreadyCompleted = errors.New("step already completed")
	ErrConcurrentUpdate     = errors.New("fulfillment record changed concurrently")
	ErrDuplicateRecord      = errors.New("fulfillment record already exists for order")
	ErrInvalidIdentifier    = errors.New("invalid fulfillment record id")
)

var errorCodes = map[error]pkgerrors.Code{
	ErrRecordNotFound:       pkgerrors.CodeNotFound,
	ErrOutOfRange:           pkgerrors.CodeValidation,
	ErrInvalidOutcome:       pkgerrors.CodeValidation,
	ErrMissingDetails:       pkgerrors.CodeValidation,
	ErrStepSkipped:          pkgerrors.CodeValidation,
	ErrPriorStepIncomplete:  pkgerrors.CodeValidation,
	ErrNotCurrentStep:       pkgerrors.CodeValidation,
	ErrAlreadyTerminal:      pkgerrors.CodeConflict,
	ErrStepAlreadyCompleted: pkgerrors.CodeConflict,
	ErrConcurrentUpdate:     pkgerrors.CodeConflict,
	ErrDuplicateRecord:      pkgerrors.CodeConflict,
	ErrInvalidIdentifier:    pkgerrors.CodeValidation,
}

// domainError wraps a sentinel in the typed error carrying its API code.
func domainError(sentinel error, message string) error {
	code, ok := errorCodes[sentinel]
	if !ok {
		code = pkgerrors.CodeInternal
	}
	return pkgerrors.Wrap(code, sentinel, message)
}
