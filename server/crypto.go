package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	faststock "github.com/OMCHOKSI108/faststock-go"
)

func (s *Server) cryptoQuote(c *gin.Context) {
	symbol := c.Param("symbol")

	// the websocket feed keeps the cache warm for subscribed pairs
	if s.cfg.Quotes != nil {
		if q, ok := s.cfg.Quotes.Get(symbol); ok {
			c.JSON(http.StatusOK, q)
			return
		}
	}

	if s.cfg.Crypto == nil {
		s.unavailable(c, "binance provider")
		return
	}
	q, err := s.cfg.Crypto.Ticker24h(c.Request.Context(), symbol)
	if err != nil {
		s.abortError(c, err)
		return
	}
	if s.cfg.Quotes != nil {
		s.cfg.Quotes.Set(*q)
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) cryptoHistorical(c *gin.Context) {
	if s.cfg.Crypto == nil {
		s.unavailable(c, "binance provider")
		return
	}

	symbol := c.Param("symbol")
	interval := c.DefaultQuery("interval", "1d")

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.abortError(c, fmt.Errorf("%w: limit %q", faststock.ErrInvalidArgument, raw))
			return
		}
		limit = n
	}

	candles, err := s.cfg.Crypto.Klines(c.Request.Context(), symbol, interval, limit)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": interval, "candles": candles})
}

// forexPair splits EURUSD-style symbols, also accepting base/quote params
func forexPair(c *gin.Context) (string, string, error) {
	base, quote := c.Query("base"), c.Query("quote")
	if base != "" && quote != "" {
		return base, quote, nil
	}
	symbol := strings.ToUpper(c.Query("symbol"))
	if len(symbol) != 6 {
		return "", "", fmt.Errorf("%w: want symbol like EURUSD or base+quote params", faststock.ErrInvalidArgument)
	}
	return symbol[:3], symbol[3:], nil
}

func (s *Server) forexQuote(c *gin.Context) {
	if s.cfg.Global == nil {
		s.unavailable(c, "yahoo provider")
		return
	}
	base, quote, err := forexPair(c)
	if err != nil {
		s.abortError(c, err)
		return
	}

	q, err := s.cfg.Global.PairQuote(c.Request.Context(), base, quote)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) forexHistorical(c *gin.Context) {
	if s.cfg.Global == nil {
		s.unavailable(c, "yahoo provider")
		return
	}
	base, quote, err := forexPair(c)
	if err != nil {
		s.abortError(c, err)
		return
	}

	rng := c.DefaultQuery("range", "1mo")
	interval := c.DefaultQuery("interval", "1d")
	symbol := base + quote + "=X"

	candles, err := s.cfg.Global.Historical(c.Request.Context(), symbol, rng, interval)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pair": base + "/" + quote, "range": rng, "interval": interval, "candles": candles})
}
