package authcore

import "errors"

var (
	// ErrInvalidCredentials is returned when a password does not match the stored hash.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateVerifiedAccount is returned when signing up with an email that already has a verified account.
	ErrDuplicateVerifiedAccount = errors.New("account already exists and is verified")
	// ErrUserNotFound is returned when no credential record exists for the given identity.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidTokenType is returned when a token's type claim is not "refresh" where a refresh token is required.
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrTokenNotValid covers expired, replayed, tampered, and unknown-session
	// refresh tokens. The cases are deliberately undifferentiated so a caller
	// cannot learn which check failed.
	ErrTokenNotValid = errors.New("token not valid")
	// ErrAlreadyVerified is returned when verifying or re-requesting a code for an already verified email.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrInvalidCode is returned when a presented one-time code does not match the stored one.
	ErrInvalidCode = errors.New("invalid code")
	// ErrCodeExpired is returned when a presented one-time code is past its expiry instant.
	ErrCodeExpired = errors.New("code expired")
	// ErrNoCodeRequested is returned when verifying a reset code while none is pending.
	ErrNoCodeRequested = errors.New("no reset code requested")
	// ErrTooManyAttempts is returned once the reset-code attempt ceiling has been reached.
	ErrTooManyAttempts = errors.New("too many reset attempts")
	// ErrNotVerified is returned when resetting a password without a prior successful code verification.
	ErrNotVerified = errors.New("reset code not verified")
	// ErrIncorrectPassword is returned by authenticated password change when the current password is wrong.
	ErrIncorrectPassword = errors.New("password is incorrect")
	// ErrUnavailable wraps connectivity failures of the credential or session
	// store. It is the only retryable class; everything above is a caller
	// input error.
	ErrUnavailable = errors.New("backend unavailable")
)
