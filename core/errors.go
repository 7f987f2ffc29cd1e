package core

import "errors"

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidToken     = errors.New("invalid token")

	// ErrIssuance is returned when a challenge cannot be recorded.
	ErrIssuance = errors.New("challenge issuance failed")

	ErrMalformedMessage       = errors.New("malformed sign-in message")
	ErrDomainMismatch         = errors.New("message domain does not match serving origin")
	ErrAddressMismatch        = errors.New("message address does not match claimed address")
	ErrNonceUnknownOrConsumed = errors.New("nonce unknown or already consumed")
	ErrMessageExpired         = errors.New("message is outside its validity window")
	ErrBadSignature           = errors.New("signature does not match claimed address")

	ErrChallengeNotFound = errors.New("challenge not found")

	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityStore    = errors.New("identity store unavailable")
	ErrImmutableField   = errors.New("field cannot be changed")
	ErrInvalidProfile   = errors.New("invalid profile")

	ErrSessionNotFound      = errors.New("session not found")
	ErrSignInInProgress     = errors.New("sign-in already in progress")
	ErrAttemptStale         = errors.New("sign-in attempt abandoned")
	ErrWalletNotConnected   = errors.New("wallet not connected")
	ErrInvalidAddress       = errors.New("invalid ethereum address")
	ErrInvalidRole          = errors.New("invalid role")
	ErrForbidden            = errors.New("forbidden")
	ErrSuperAdminNotGranted = errors.New("super_admin is granted by allowlist only")
)

var verificationErrors = []struct {
	err    error
	reason string
}{
	{ErrMalformedMessage, "malformed_message"},
	{ErrDomainMismatch, "domain_mismatch"},
	{ErrAddressMismatch, "address_mismatch"},
	{ErrNonceUnknownOrConsumed, "nonce_unknown_or_consumed"},
	{ErrMessageExpired, "expired"},
	{ErrBadSignature, "bad_signature"},
}

// IsVerificationError reports whether err came from signature verification.
func IsVerificationError(err error) bool {
	return VerificationReason(err) != ""
}

// VerificationReason returns a stable label for a verification error, or ""
// when err is not one.
func VerificationReason(err error) string {
	if err == nil {
		return ""
	}
	for _, v := range verificationErrors {
		if errors.Is(err, v.err) {
			return v.reason
		}
	}
	return ""
}
