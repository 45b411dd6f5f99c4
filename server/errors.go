package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	faststock "github.com/OMCHOKSI108/faststock-go"
)

// statusFor maps domain errors onto HTTP status codes. Anything unmapped is
// treated as an upstream failure rather than a server bug.
func statusFor(err error) int {
	switch {
	case errors.Is(err, faststock.ErrInvalidArgument),
		errors.Is(err, faststock.ErrUnknownSide):
		return http.StatusBadRequest
	case errors.Is(err, faststock.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, faststock.ErrSymbolNotFound),
		errors.Is(err, faststock.ErrExpiryNotFound),
		errors.Is(err, faststock.ErrJobNotFound),
		errors.Is(err, faststock.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, faststock.ErrEmptySnapshot),
		errors.Is(err, faststock.ErrNoCallOpenInterest):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) abortError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (s *Server) unavailable(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": what + " not configured"})
}
