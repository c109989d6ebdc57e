package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON        = "INVALID_JSON"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodePromoNotAvailable  = "PROMO_NOT_AVAILABLE"
	ErrCodePromoLimitExceeded = "PROMO_LIMIT_EXCEEDED"
	ErrCodePromoCodeNotFound  = "PROMO_CODE_NOT_FOUND"
	ErrCodePromoCodeExists    = "PROMO_CODE_EXISTS"
	ErrCodeOrderNotFound      = "ORDER_NOT_FOUND"
	ErrCodeOrderExists        = "ORDER_EXISTS"
	ErrCodeIdempotencyReused  = "IDEMPOTENCY_KEY_REUSED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeJobNotFound        = "JOB_NOT_FOUND"
	ErrCodeUnauthorised       = "UNAUTHORIZED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so errors built with a
// specific message still match the sentinel for their code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error with the given message.
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// NewNotAvailableError creates a promo-not-available error with a specific reason.
func NewNotAvailableError(message string) *DomainError {
	return NewDomainError(ErrCodePromoNotAvailable, message)
}

// Common domain errors
var (
	ErrValidation         = NewDomainError(ErrCodeValidation, "Invalid request")
	ErrPromoNotAvailable  = NewDomainError(ErrCodePromoNotAvailable, "Promo code not available or limit reached")
	ErrPromoLimitExceeded = NewDomainError(ErrCodePromoLimitExceeded, "You have reached your usage limit for this promo code")
	ErrPromoCodeNotFound  = NewDomainError(ErrCodePromoCodeNotFound, "Promo code not found")
	ErrPromoCodeExists    = NewDomainError(ErrCodePromoCodeExists, "Promo code already exists")
	ErrOrderNotFound      = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrOrderExists        = NewDomainError(ErrCodeOrderExists, "Order already exists for this request")
	ErrIdempotencyReused  = NewDomainError(ErrCodeIdempotencyReused, "Request id was already used for a different order")
	ErrUserNotFound       = NewDomainError(ErrCodeUserNotFound, "User not found")
	ErrJobNotFound        = NewDomainError(ErrCodeJobNotFound, "Job not found")
)
