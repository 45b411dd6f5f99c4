package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/analytics"
	"github.com/OMCHOKSI108/faststock-go/chain"
)

// withSnapshot resolves the requested snapshot and hands it to fn, funnelling
// all the shared query parsing and error mapping through one place.
func (s *Server) withSnapshot(c *gin.Context, fn func(snap *chain.Snapshot)) {
	symbol, expiry, hasExpiry, err := chainArgs(c)
	if err != nil {
		s.abortError(c, err)
		return
	}
	snap, err := s.snapshotFor(c, symbol, expiry, hasExpiry)
	if err != nil {
		s.abortError(c, err)
		return
	}
	fn(snap)
}

func topNArg(c *gin.Context) (int, error) {
	raw := c.Query("top_n")
	if raw == "" {
		return analytics.DefaultTopN, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: top_n %q", faststock.ErrInvalidArgument, raw)
	}
	return n, nil
}

func sideArg(c *gin.Context) (analytics.SideFilter, error) {
	switch strings.ToLower(c.DefaultQuery("side", "both")) {
	case "calls":
		return analytics.CallsOnly, nil
	case "puts":
		return analytics.PutsOnly, nil
	case "both":
		return analytics.BothSides, nil
	default:
		return 0, fmt.Errorf("%w: side must be calls, puts or both", faststock.ErrUnknownSide)
	}
}

func (s *Server) analyticsPCR(c *gin.Context) {
	s.withSnapshot(c, func(snap *chain.Snapshot) {
		pcr, err := analytics.ComputePCR(snap)
		if err != nil {
			s.abortError(c, err)
			return
		}
		c.JSON(http.StatusOK, pcr)
	})
}

func (s *Server) analyticsTopOI(c *gin.Context) {
	topN, err := topNArg(c)
	if err != nil {
		s.abortError(c, err)
		return
	}
	side, err := sideArg(c)
	if err != nil {
		s.abortError(c, err)
		return
	}

	s.withSnapshot(c, func(snap *chain.Snapshot) {
		out, err := analytics.TopOpenInterest(snap, topN, side)
		if err != nil {
			s.abortError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})
}

func (s *Server) analyticsMaxPain(c *gin.Context) {
	s.withSnapshot(c, func(snap *chain.Snapshot) {
		out, err := analytics.MaxPain(snap)
		if err != nil {
			s.abortError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})
}

func (s *Server) analyticsSummary(c *gin.Context) {
	topN, err := topNArg(c)
	if err != nil {
		s.abortError(c, err)
		return
	}

	s.withSnapshot(c, func(snap *chain.Snapshot) {
		out, err := analytics.Summarize(snap, topN)
		if err != nil {
			s.abortError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})
}
