package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/ports"
)

const (
	AudienceSession = "beatauth:session"
	Issuer          = "beatauth"
)

// JWTTokenizer implements ports.Tokenizer with ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	now     func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer. A nil clock uses time.Now.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, now func() time.Time) *JWTTokenizer {
	if now == nil {
		now = time.Now
	}
	return &JWTTokenizer{signKey: signKey, now: now}
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// SessionToToken converts a Session to a signed JWT
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   session.Address,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.EstablishedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signedToken, nil
}

// TokenToSession parses and validates a session JWT
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	},
		jwt.WithAudience(AudienceSession),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, core.ErrInvalidToken
	}

	return &core.Session{
		ID:             claims.ID,
		Address:        claims.Subject,
		SignatureProof: tokenStr,
		EstablishedAt:  claims.IssuedAt.Time,
		ExpiresAt:      claims.ExpiresAt.Time,
	}, nil
}

// GenerateKey creates a fresh P-256 signing key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// ParseKey decodes a hex-encoded P-256 private scalar.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, errors.New("signing key out of range")
	}

	key := &ecdsa.PrivateKey{D: d}
	key.PublicKey.Curve = curve
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(raw)
	return key, nil
}
