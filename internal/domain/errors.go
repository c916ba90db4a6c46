package domain

import "errors"

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindBadRequest
	KindAuthentication
	KindNotFound
	KindConflict
	KindRateLimit
	KindTransientDelivery
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBadRequest:
		return "bad_request"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimit:
		return "rate_limit"
	case KindTransientDelivery:
		return "transient_delivery"
	default:
		return "internal"
	}
}

// Error is a failure with a stable, client-safe code and message. Sentinels
// below are compared by identity with errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(message string) *Error {
	return NewError(KindValidation, "validation_error", message)
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

var (
	ErrInvalidCredentials = NewError(KindAuthentication, "invalid_credentials", "Invalid email or password")
	ErrAuthRequired       = NewError(KindAuthentication, "authorization_required", "Not authenticated")

	// Token failures share one client-facing message.
	ErrInvalidToken    = NewError(KindAuthentication, "authentication_failed", "Could not validate credentials")
	ErrTokenExpired    = NewError(KindAuthentication, "authentication_failed", "Could not validate credentials")
	ErrMalformedClaims = NewError(KindAuthentication, "authentication_failed", "Could not validate credentials")

	ErrDuplicateAccount      = NewError(KindConflict, "already_registered", "Email or username already registered")
	ErrInvalidOrExpiredToken = NewError(KindBadRequest, "invalid_or_expired_token", "Invalid or expired reset token")

	ErrSelfMessage       = NewError(KindBadRequest, "self_message", "You cannot send a message to yourself")
	ErrRecipientNotFound = NewError(KindNotFound, "recipient_not_found", "Recipient not found")
	ErrUserNotFound      = NewError(KindNotFound, "user_not_found", "User not found")
	ErrInvalidContent    = NewError(KindValidation, "invalid_content", "Message content must be between 1 and 2000 characters")
	ErrQueryTooShort     = NewError(KindValidation, "query_too_short", "Search query must be at least 2 characters")

	ErrRateLimited    = NewError(KindRateLimit, "rate_limited", "Too many requests, slow down")
	ErrDeliveryFailed = NewError(KindTransientDelivery, "delivery_failed", "delivery to live connection failed")
)
