package core

import "time"

// Challenge is a single-use nonce issued for one sign-in attempt.
type Challenge struct {
	Nonce     string    `json:"nonce"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Consumed  bool      `json:"consumed"`
}

// Expired reports whether the challenge can no longer be used at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// VerifiedIdentity is what a successful signature verification proves.
type VerifiedIdentity struct {
	Address   string // lowercase
	Nonce     string
	Signature string
	IssuedAt  time.Time
}

// Session is the client-held proof of authentication.
type Session struct {
	ID             string    // Unique session identifier
	Address        string    // Authenticated wallet address, lowercase
	SignatureProof string    // Accepted signature or a token derived from it
	EstablishedAt  time.Time // When sign-in completed
	ExpiresAt      time.Time // EstablishedAt + session TTL
}

// ValidFor reports whether the session is usable at now by the wallet
// currently connected as address.
func (s *Session) ValidFor(address string, now time.Time) bool {
	if s == nil {
		return false
	}
	return now.Before(s.ExpiresAt) && SameAddress(s.Address, address)
}

// PersistedSession is the durable client-side record of a session.
type PersistedSession struct {
	ID             string    `json:"id,omitempty"`
	Address        string    `json:"address"`
	SignatureProof string    `json:"signature_proof"`
	Timestamp      time.Time `json:"timestamp"`
}

// Persisted converts a session to its durable form.
func (s *Session) Persisted() *PersistedSession {
	return &PersistedSession{
		ID:             s.ID,
		Address:        s.Address,
		SignatureProof: s.SignatureProof,
		Timestamp:      s.EstablishedAt,
	}
}

// Session rebuilds a session from its durable form using ttl.
func (p *PersistedSession) Session(ttl time.Duration) *Session {
	return &Session{
		ID:             p.ID,
		Address:        NormalizeAddress(p.Address),
		SignatureProof: p.SignatureProof,
		EstablishedAt:  p.Timestamp,
		ExpiresAt:      p.Timestamp.Add(ttl),
	}
}
