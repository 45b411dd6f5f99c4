package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	faststock "github.com/OMCHOKSI108/faststock-go"
)

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := s.log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = s.log.Warn()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// authenticate enforces the bearer token on mutating and analytics routes
func (s *Server) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "bearer") {
		s.abortError(c, faststock.ErrUnauthorized)
		return
	}
	if subtle.ConstantTimeCompare([]byte(fields[1]), []byte(s.cfg.APIToken)) != 1 {
		s.abortError(c, faststock.ErrUnauthorized)
		return
	}
	c.Next()
}
