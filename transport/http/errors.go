package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/layer-3/beatauth/core"
)

// signInFailed is the only message a client sees for any verification
// failure, so responses never reveal which check failed.
const signInFailed = "sign-in failed, please retry"

type errorResponse struct {
	Error string `json:"error"`
}

// abortWithError maps err to a status code and renders the error envelope.
func abortWithError(c *gin.Context, log zerolog.Logger, err error) {
	code, msg := resolveError(err)
	if code >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(code, errorResponse{Error: msg})
}

func resolveError(err error) (int, string) {
	switch {
	case core.IsVerificationError(err):
		return http.StatusUnauthorized, signInFailed
	case errors.Is(err, core.ErrTokenExpired):
		return http.StatusUnauthorized, "session expired"
	case errors.Is(err, core.ErrTokenInvalidated), errors.Is(err, core.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid session"
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, "access forbidden"
	case errors.Is(err, core.ErrIdentityNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, core.ErrInvalidRole), errors.Is(err, core.ErrSuperAdminNotGranted),
		errors.Is(err, core.ErrInvalidProfile), errors.Is(err, core.ErrInvalidAddress):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, core.ErrIssuance), errors.Is(err, core.ErrIdentityStore):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	}
	return http.StatusInternalServerError, "internal server error"
}
