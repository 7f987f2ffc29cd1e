package ports

import (
	"context"

	"github.com/layer-3/beatauth/core"
)

// ChallengeIssuer hands out single-use nonces
type ChallengeIssuer interface {
	Issue(ctx context.Context) (*core.Challenge, error)
}

// SignatureVerifier checks a signed sign-in message against a claimed address
type SignatureVerifier interface {
	Verify(ctx context.Context, claimedAddress, message, signature string) (*core.VerifiedIdentity, error)
}

// Wallet is the external signer controlling an address
type Wallet interface {
	SignMessage(ctx context.Context, address string, message []byte) (string, error)
}
