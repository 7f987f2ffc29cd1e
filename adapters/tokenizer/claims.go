package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the standard claims of a session token. The subject is
// the lowercase wallet address and the JWT ID is the session id. Roles are
// never carried in the token; they are re-resolved on every request.
type SessionClaims struct {
	jwt.RegisteredClaims
}
