package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/supportdesk/orderbot/internal/domain"
)

// DomainError standardizes application errors crossing the HTTP boundary.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError, mapping the engine's
// sentinel errors onto HTTP statuses.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &DomainError{Code: "NOT_FOUND", Message: "resource not found", HTTPStatus: http.StatusNotFound, Err: err}
	case errors.Is(err, domain.ErrInvalidTransition):
		return &DomainError{Code: "INVALID_TRANSITION", Message: "order is not in a state that allows this", HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, domain.ErrQuotaExceeded):
		return &DomainError{Code: "QUOTA_EXCEEDED", Message: "billing-cycle order quota exhausted", HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, domain.ErrActiveOrderExists):
		return &DomainError{Code: "ACTIVE_ORDER_EXISTS", Message: "an order is already in progress", HTTPStatus: http.StatusConflict, Err: err}
	case errors.Is(err, domain.ErrPaymentRequired):
		return &DomainError{Code: "PAYMENT_REQUIRED", Message: "tariff is unpaid", HTTPStatus: http.StatusPaymentRequired, Err: err}
	case errors.Is(err, domain.ErrTariffForbids):
		return &DomainError{Code: "TARIFF_FORBIDS", Message: "tariff does not include this capability", HTTPStatus: http.StatusForbidden, Err: err}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	return ToDomainError(err)
}
