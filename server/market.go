package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	faststock "github.com/OMCHOKSI108/faststock-go"
)

// symbolArg reads a symbol from the path param, falling back to the query
// string so both /price/stock/TCS and /price/stock?symbol=TCS work.
func symbolArg(c *gin.Context, param string) string {
	if v := c.Param(param); v != "" {
		return v
	}
	return c.Query("symbol")
}

func (s *Server) indexPrice(c *gin.Context) {
	if s.cfg.India == nil {
		s.unavailable(c, "nse provider")
		return
	}
	symbol := symbolArg(c, "index")
	if symbol == "" {
		s.abortError(c, fmt.Errorf("%w: missing index", faststock.ErrInvalidArgument))
		return
	}

	q, err := s.cfg.India.IndexQuote(c.Request.Context(), symbol)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) stockPrice(c *gin.Context) {
	if s.cfg.India == nil {
		s.unavailable(c, "nse provider")
		return
	}
	symbol := symbolArg(c, "symbol")
	if symbol == "" {
		s.abortError(c, fmt.Errorf("%w: missing symbol", faststock.ErrInvalidArgument))
		return
	}

	q, err := s.cfg.India.EquityQuote(c.Request.Context(), symbol)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) stockQuote(c *gin.Context) {
	symbol := c.Param("symbol")

	switch strings.ToUpper(c.Param("region")) {
	case "IND":
		if s.cfg.India == nil {
			s.unavailable(c, "nse provider")
			return
		}
		q, err := s.cfg.India.EquityQuote(c.Request.Context(), symbol)
		if err != nil {
			s.abortError(c, err)
			return
		}
		c.JSON(http.StatusOK, q)
	case "US":
		if s.cfg.Global == nil {
			s.unavailable(c, "yahoo provider")
			return
		}
		q, err := s.cfg.Global.Quote(c.Request.Context(), symbol)
		if err != nil {
			s.abortError(c, err)
			return
		}
		c.JSON(http.StatusOK, q)
	default:
		s.abortError(c, fmt.Errorf("%w: region must be IND or US", faststock.ErrInvalidArgument))
	}
}

func (s *Server) stockHistorical(c *gin.Context) {
	if s.cfg.Global == nil {
		s.unavailable(c, "yahoo provider")
		return
	}

	symbol := c.Param("symbol")
	switch strings.ToUpper(c.Param("region")) {
	case "IND":
		// NSE listings trade on Yahoo under the .NS suffix
		if !strings.HasSuffix(strings.ToUpper(symbol), ".NS") {
			symbol += ".NS"
		}
	case "US":
	default:
		s.abortError(c, fmt.Errorf("%w: region must be IND or US", faststock.ErrInvalidArgument))
		return
	}

	rng := c.DefaultQuery("range", "1mo")
	interval := c.DefaultQuery("interval", "1d")

	candles, err := s.cfg.Global.Historical(c.Request.Context(), symbol, rng, interval)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "range": rng, "interval": interval, "candles": candles})
}
