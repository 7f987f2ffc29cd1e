package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/internal/eth"
	"github.com/layer-3/beatauth/internal/metrics"
	"github.com/layer-3/beatauth/internal/siwe"
	"github.com/layer-3/beatauth/ports"
)

// DefaultClockSkew is how far in the future a message may claim to be issued.
const DefaultClockSkew = time.Minute

// VerifierConfig describes the serving origin and the nonce window
type VerifierConfig struct {
	Domain    string
	NonceTTL  time.Duration
	ClockSkew time.Duration
}

// SignatureVerifier validates signed SIWE messages against outstanding challenges
type SignatureVerifier struct {
	challenges ports.ChallengeStore
	cfg        VerifierConfig
	now        func() time.Time
	log        zerolog.Logger
}

// NewSignatureVerifier creates a verifier bound to one serving domain
func NewSignatureVerifier(challenges ports.ChallengeStore, cfg VerifierConfig, log zerolog.Logger) *SignatureVerifier {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = DefaultClockSkew
	}
	return &SignatureVerifier{
		challenges: challenges,
		cfg:        cfg,
		now:        time.Now,
		log:        log.With().Str("component", "signature_verifier").Logger(),
	}
}

// WithClock replaces the verifier's time source.
func (v *SignatureVerifier) WithClock(now func() time.Time) *SignatureVerifier {
	v.now = now
	return v
}

var _ ports.SignatureVerifier = (*SignatureVerifier)(nil)

// Verify checks message and signature for claimedAddress. The nonce named in
// the message is consumed before any check runs, so it can never be retried.
func (v *SignatureVerifier) Verify(ctx context.Context, claimedAddress, message, signature string) (*core.VerifiedIdentity, error) {
	verified, err := v.verify(ctx, claimedAddress, message, signature)
	if err != nil {
		reason := core.VerificationReason(err)
		if reason == "" {
			reason = "store_error"
		}
		metrics.VerificationsTotal.WithLabelValues(reason).Inc()
		v.log.Warn().
			Err(err).
			Str("reason", reason).
			Str("claimed_address", core.NormalizeAddress(claimedAddress)).
			Msg("sign-in verification failed")
		return nil, err
	}

	metrics.VerificationsTotal.WithLabelValues("ok").Inc()
	return verified, nil
}

func (v *SignatureVerifier) verify(ctx context.Context, claimedAddress, message, signature string) (*core.VerifiedIdentity, error) {
	msg, err := siwe.Parse(message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedMessage, err)
	}

	challenge, err := v.challenges.Consume(ctx, msg.Nonce)
	if err != nil && !errors.Is(err, core.ErrChallengeNotFound) {
		return nil, fmt.Errorf("consume nonce: %w", err)
	}

	if !strings.EqualFold(msg.Domain, v.cfg.Domain) {
		return nil, fmt.Errorf("%w: got %q", core.ErrDomainMismatch, msg.Domain)
	}
	if !eth.IsAddress(msg.Address) {
		return nil, fmt.Errorf("%w: bad address", core.ErrMalformedMessage)
	}
	if !core.SameAddress(msg.Address, claimedAddress) {
		return nil, core.ErrAddressMismatch
	}
	if !v.withinWindow(msg) {
		return nil, core.ErrMessageExpired
	}
	if challenge == nil {
		return nil, core.ErrNonceUnknownOrConsumed
	}

	ok, err := eth.VerifyPersonal([]byte(message), signature, common.HexToAddress(msg.Address))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrBadSignature, err)
	}
	if !ok {
		return nil, core.ErrBadSignature
	}

	return &core.VerifiedIdentity{
		Address:   core.NormalizeAddress(msg.Address),
		Nonce:     msg.Nonce,
		Signature: signature,
		IssuedAt:  msg.IssuedAt,
	}, nil
}

// withinWindow applies the message's own bounds, falling back to the
// issuance time plus the nonce lifetime.
func (v *SignatureVerifier) withinWindow(msg *siwe.Message) bool {
	now := v.now()

	start := msg.IssuedAt
	if msg.NotBefore != nil {
		start = *msg.NotBefore
	}
	start = start.Add(-v.cfg.ClockSkew)

	end := msg.IssuedAt.Add(v.cfg.NonceTTL)
	if msg.ExpirationTime != nil {
		end = *msg.ExpirationTime
	}
	return !now.Before(start) && now.Before(end)
}
