package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation_error"
	KindNotFound   ErrorKind = "not_found"
	KindAuth       ErrorKind = "auth_error"
	KindPermission ErrorKind = "permission_denied"
	KindConflict   ErrorKind = "conflict"
	KindExternal   ErrorKind = "external_service_error"
	KindInternal   ErrorKind = "internal_error"
)

// Error is the failure type surfaced by every core operation. Two Errors are
// considered equal by errors.Is when their codes match, so callers can compare
// against the sentinels below even after a message has been customised.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	// Identity & credentials.
	ErrMissingCredential = newError(KindAuth, "missing_credential", "Not authorized, no token or api key")
	ErrInvalidToken      = newError(KindAuth, "invalid_token", "Not authorized, token failed")
	ErrUserNotFound      = newError(KindAuth, "user_not_found", "Not authorized, user not found")
	ErrInvalidAPIKey     = newError(KindAuth, "invalid_api_key", "Invalid API key")
	ErrKeyRevoked        = newError(KindAuth, "key_revoked", "API key revoked")
	ErrKeyExpired        = newError(KindAuth, "key_expired", "API key expired")
	ErrPermissionDenied  = newError(KindPermission, "permission_denied", "Missing permission")
	ErrInvalidSignature  = newError(KindAuth, "invalid_signature", "Invalid signature")

	// API key lifecycle.
	ErrInvalidName        = newError(KindValidation, "invalid_name", "Name is required")
	ErrInvalidPermissions = newError(KindValidation, "invalid_permissions", "Permissions must be a non-empty list of strings")
	ErrInvalidExpiry      = newError(KindValidation, "invalid_expiry", "Invalid expiry format. Use 1H, 1D, 1M, 1Y")
	ErrKeyLimitExceeded   = newError(KindConflict, "key_limit_exceeded", "Maximum number of active API keys reached")
	ErrKeyNotFound        = newError(KindNotFound, "key_not_found", "API key not found")
	ErrKeyNotOwned        = newError(KindPermission, "unauthorized", "Unauthorized to access this key")
	ErrKeyNotYetExpired   = newError(KindConflict, "key_not_yet_expired", "Key is not expired yet")

	// Ledger.
	ErrInvalidAmount           = newError(KindValidation, "invalid_amount", "Invalid amount")
	ErrSelfTransfer            = newError(KindValidation, "self_transfer", "Cannot transfer to your own wallet")
	ErrWalletNotFound          = newError(KindNotFound, "wallet_not_found", "Wallet not found")
	ErrSenderWalletNotFound    = newError(KindNotFound, "sender_wallet_not_found", "Sender wallet not found")
	ErrRecipientWalletNotFound = newError(KindNotFound, "recipient_wallet_not_found", "Recipient wallet not found")
	ErrInsufficientFunds       = newError(KindConflict, "insufficient_funds", "Insufficient funds")
	ErrTransactionNotFound     = newError(KindNotFound, "transaction_not_found", "Transaction not found")
	ErrDuplicateReference      = newError(KindConflict, "duplicate_reference", "Reference already exists")
	ErrPaymentInitFailed       = newError(KindExternal, "payment_init_failed", "Payment initialization failed")

	ErrInvalidRequest = newError(KindValidation, "invalid_request", "Invalid request body")
	ErrInternal       = newError(KindInternal, "internal_error", "Internal server error")
)

// Internal wraps an unexpected error, passing *Error values through untouched.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return ErrInternal.Wrap(err)
}

// KindOf reports the kind of err, treating anything untyped as internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
