// Package businessflow contains the core business logic and use cases for forecast and adjustment workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Adjustment-related errors
	ErrAdjustmentNotFound         = errors.New("adjustment not found")
	ErrAdjustmentAccessDenied     = errors.New("adjustment access denied")
	ErrAdjustmentValueOutOfRange  = errors.New("adjustment value must be between -100 and 100")
	ErrAdjustmentValueNotNumeric  = errors.New("adjustment value must be a finite number")
	ErrFilterContextRequired      = errors.New("filter context is required")
	ErrInvalidFilterContext       = errors.New("filter context is invalid")

	// Forecast query errors
	ErrUnknownQueryAction    = errors.New("unknown query action")
	ErrUnknownDimension      = errors.New("unknown dimension")
	ErrStatesRequired        = errors.New("at least one state is required")
	ErrQueryTextRequired     = errors.New("query text is required")
	ErrQueryNotReadOnly      = errors.New("only read-only queries are allowed")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
	ErrInvalidExportFormat   = errors.New("export format must be csv or xlsx")

	// Infrastructure errors
	ErrCacheNotAvailable = errors.New("cache not available")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsAdjustmentNotFound(err error) bool {
	return errors.Is(err, ErrAdjustmentNotFound)
}

func IsAdjustmentAccessDenied(err error) bool {
	return errors.Is(err, ErrAdjustmentAccessDenied)
}

func IsAdjustmentValueOutOfRange(err error) bool {
	return errors.Is(err, ErrAdjustmentValueOutOfRange)
}

func IsAdjustmentValueNotNumeric(err error) bool {
	return errors.Is(err, ErrAdjustmentValueNotNumeric)
}

func IsFilterContextRequired(err error) bool {
	return errors.Is(err, ErrFilterContextRequired)
}

func IsInvalidFilterContext(err error) bool {
	return errors.Is(err, ErrInvalidFilterContext)
}

func IsUnknownQueryAction(err error) bool {
	return errors.Is(err, ErrUnknownQueryAction)
}

func IsUnknownDimension(err error) bool {
	return errors.Is(err, ErrUnknownDimension)
}

func IsStatesRequired(err error) bool {
	return errors.Is(err, ErrStatesRequired)
}

func IsQueryTextRequired(err error) bool {
	return errors.Is(err, ErrQueryTextRequired)
}

func IsQueryNotReadOnly(err error) bool {
	return errors.Is(err, ErrQueryNotReadOnly)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}

func IsInvalidExportFormat(err error) bool {
	return errors.Is(err, ErrInvalidExportFormat)
}

func IsCacheNotAvailable(err error) bool {
	return errors.Is(err, ErrCacheNotAvailable)
}
