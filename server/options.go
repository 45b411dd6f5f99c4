package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/chain"
)

// DefaultIndex is the underlying assumed when a request names none
const DefaultIndex = "NIFTY"

func chainArgs(c *gin.Context) (string, time.Time, bool, error) {
	symbol := c.DefaultQuery("index", DefaultIndex)

	raw := c.Query("expiry")
	if raw == "" {
		return symbol, time.Time{}, false, nil
	}
	expiry, err := time.Parse(types.DateFormat, raw)
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("%w: expiry %q, want YYYY-MM-DD", faststock.ErrInvalidArgument, raw)
	}
	return symbol, expiry, true, nil
}

// snapshotFor resolves a snapshot from the poller cache first, then the
// store. Without an expiry only the store can answer, since the cache is
// keyed per expiry.
func (s *Server) snapshotFor(c *gin.Context, symbol string, expiry time.Time, hasExpiry bool) (*chain.Snapshot, error) {
	if hasExpiry {
		if s.cfg.Chains != nil {
			snap, err := s.cfg.Chains.Latest(symbol, expiry)
			if err == nil {
				return snap, nil
			}
			if !errors.Is(err, faststock.ErrNoData) {
				return nil, err
			}
		}
		if s.cfg.Store != nil {
			return s.cfg.Store.LatestSnapshotForExpiry(c.Request.Context(), symbol, expiry)
		}
		return nil, fmt.Errorf("%s: %w", symbol, faststock.ErrNoData)
	}

	if s.cfg.Store != nil {
		return s.cfg.Store.LatestSnapshot(c.Request.Context(), symbol)
	}
	return nil, fmt.Errorf("%s: %w", symbol, faststock.ErrNoData)
}

func (s *Server) optionExpiries(c *gin.Context) {
	if s.cfg.Expiries == nil {
		s.unavailable(c, "expiry source")
		return
	}
	symbol := c.DefaultQuery("index", DefaultIndex)

	expiries, err := s.cfg.Expiries.Expiries(c.Request.Context(), symbol)
	if err != nil {
		s.abortError(c, err)
		return
	}

	out := make([]string, 0, len(expiries))
	for _, e := range expiries {
		out = append(out, e.Format(types.DateFormat))
	}
	c.JSON(http.StatusOK, gin.H{"index": symbol, "expiries": out})
}

func (s *Server) optionLatest(c *gin.Context) {
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

	// strikes limits the response to n strikes either side of ATM
	raw := c.Query("strikes")
	if raw == "" {
		raw = c.Query("limit")
	}
	if raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n <= 0 {
			s.abortError(c, fmt.Errorf("%w: strikes %q", faststock.ErrInvalidArgument, raw))
			return
		}
		snap = snap.Clip(n)
	}
	c.JSON(http.StatusOK, snap)
}

type fetchRequest struct {
	Index  string `json:"index"`
	Expiry string `json:"expiry"`
}

func (r fetchRequest) index() string {
	if r.Index == "" {
		return DefaultIndex
	}
	return r.Index
}

// fetchChain starts an async fetch of the nearest expiry
func (s *Server) fetchChain(c *gin.Context) {
	if s.cfg.Chains == nil || s.cfg.Expiries == nil {
		s.unavailable(c, "option chain backend")
		return
	}

	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortError(c, fmt.Errorf("%w: %s", faststock.ErrInvalidArgument, err))
		return
	}

	expiries, err := s.cfg.Expiries.Expiries(c.Request.Context(), req.index())
	if err != nil {
		s.abortError(c, err)
		return
	}

	job, err := s.cfg.Chains.FetchNow(c.Request.Context(), req.index(), expiries[0])
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// fetchChainExpiry starts an async fetch of one specific expiry
func (s *Server) fetchChainExpiry(c *gin.Context) {
	if s.cfg.Chains == nil {
		s.unavailable(c, "option chain backend")
		return
	}

	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortError(c, fmt.Errorf("%w: %s", faststock.ErrInvalidArgument, err))
		return
	}
	expiry, err := time.Parse(types.DateFormat, req.Expiry)
	if err != nil {
		s.abortError(c, fmt.Errorf("%w: expiry %q, want YYYY-MM-DD", faststock.ErrInvalidArgument, req.Expiry))
		return
	}

	job, err := s.cfg.Chains.FetchNow(c.Request.Context(), req.index(), expiry)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) jobStatus(c *gin.Context) {
	if s.cfg.Chains == nil {
		s.unavailable(c, "option chain backend")
		return
	}
	job, err := s.cfg.Chains.Job(c.Param("id"))
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) listJobs(c *gin.Context) {
	if s.cfg.Chains == nil {
		s.unavailable(c, "option chain backend")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": s.cfg.Chains.Jobs()})
}

func (s *Server) listSubscriptions(c *gin.Context) {
	if s.cfg.Chains == nil {
		s.unavailable(c, "option chain backend")
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": s.cfg.Chains.Subscriptions()})
}

func (s *Server) subscribe(c *gin.Context) {
	if s.cfg.Chains == nil {
		s.unavailable(c, "option chain backend")
		return
	}

	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortError(c, fmt.Errorf("%w: %s", faststock.ErrInvalidArgument, err))
		return
	}
	expiry, err := time.Parse(types.DateFormat, req.Expiry)
	if err != nil {
		s.abortError(c, fmt.Errorf("%w: expiry %q, want YYYY-MM-DD", faststock.ErrInvalidArgument, req.Expiry))
		return
	}

	if err := s.cfg.Chains.Subscribe(req.index(), expiry); err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subscriptions": s.cfg.Chains.Subscriptions()})
}

func (s *Server) unsubscribe(c *gin.Context) {
	if s.cfg.Chains == nil {
		s.unavailable(c, "option chain backend")
		return
	}

	symbol, expiry, hasExpiry, err := chainArgs(c)
	if err != nil {
		s.abortError(c, err)
		return
	}
	if !hasExpiry {
		s.abortError(c, fmt.Errorf("%w: missing expiry", faststock.ErrInvalidArgument))
		return
	}

	if err := s.cfg.Chains.Unsubscribe(symbol, expiry); err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": s.cfg.Chains.Subscriptions()})
}
