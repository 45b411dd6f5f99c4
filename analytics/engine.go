// Package analytics computes derived option-chain metrics: put-call ratio,
// max pain and top open-interest strikes. Every function is pure and
// stateless: it reads one snapshot, allocates its own intermediates and is
// safe to call from any number of goroutines.
package analytics

import (
	"fmt"
	"math"
	"sort"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/chain"
)

// PCR holds the put-call ratio computed from a snapshot.
// Undefined is set when the snapshot carries no open interest at all, in
// which case ByOI is zero rather than an error.
type PCR struct {
	ByOI        float64 `json:"pcr_by_oi"`
	ByVolume    float64 `json:"pcr_by_volume"`
	TotalCallOI int64   `json:"total_call_oi"`
	TotalPutOI  int64   `json:"total_put_oi"`
	Undefined   bool    `json:"undefined,omitempty"`
}

// ComputePCR sums open interest per side and returns put OI over call OI.
//
// A snapshot with zero call OI and nonzero put OI fails with
// ErrNoCallOpenInterest instead of returning an infinite ratio, so callers
// must handle the degenerate case explicitly. A snapshot with no open
// interest on either side returns a zero ratio flagged Undefined.
func ComputePCR(snap *chain.Snapshot) (PCR, error) {
	var out PCR
	var callVol, putVol int64

	for _, r := range snap.Records {
		switch r.Side {
		case chain.Call:
			out.TotalCallOI += r.OpenInterest
			callVol += r.Volume
		case chain.Put:
			out.TotalPutOI += r.OpenInterest
			putVol += r.Volume
		}
	}

	if out.TotalCallOI == 0 {
		if out.TotalPutOI == 0 {
			out.Undefined = true
			return out, nil
		}
		return PCR{}, fmt.Errorf("put OI %d: %w", out.TotalPutOI, faststock.ErrNoCallOpenInterest)
	}

	out.ByOI = float64(out.TotalPutOI) / float64(out.TotalCallOI)
	if callVol > 0 {
		out.ByVolume = float64(putVol) / float64(callVol)
	}
	return out, nil
}

// OIStrike is one entry in a top open-interest ranking
type OIStrike struct {
	Strike       float64 `json:"strike"`
	OpenInterest int64   `json:"open_interest"`
}

// TopOI holds the highest open-interest strikes per side. High call OI marks
// resistance, high put OI marks support. Only the requested sides are
// populated.
type TopOI struct {
	Calls []OIStrike `json:"top_oi_calls,omitempty"`
	Puts  []OIStrike `json:"top_oi_puts,omitempty"`
}

// SideFilter selects which sides TopOpenInterest ranks
type SideFilter int

const (
	// CallsOnly ranks call records only
	CallsOnly SideFilter = iota
	// PutsOnly ranks put records only
	PutsOnly
	// BothSides ranks calls and puts independently
	BothSides
)

// DefaultTopN is the ranking depth used when the caller does not specify one
const DefaultTopN = 5

// TopOpenInterest ranks strikes by open interest, descending, ties broken by
// ascending strike. If a side has fewer than topN strikes all of them are
// returned; the result is never padded. topN must be positive.
func TopOpenInterest(snap *chain.Snapshot, topN int, side SideFilter) (TopOI, error) {
	if topN <= 0 {
		return TopOI{}, fmt.Errorf("%w: top_n must be positive, got %d", faststock.ErrInvalidArgument, topN)
	}
	if side != CallsOnly && side != PutsOnly && side != BothSides {
		return TopOI{}, fmt.Errorf("%w: side filter %d", faststock.ErrInvalidArgument, int(side))
	}

	var out TopOI
	if side == CallsOnly || side == BothSides {
		out.Calls = rankByOI(snap.BySide(chain.Call), topN)
	}
	if side == PutsOnly || side == BothSides {
		out.Puts = rankByOI(snap.BySide(chain.Put), topN)
	}
	return out, nil
}

func rankByOI(records []chain.OptionRecord, topN int) []OIStrike {
	ranked := make([]OIStrike, 0, len(records))
	for _, r := range records {
		ranked = append(ranked, OIStrike{Strike: r.Strike, OpenInterest: r.OpenInterest})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].OpenInterest != ranked[j].OpenInterest {
			return ranked[i].OpenInterest > ranked[j].OpenInterest
		}
		return ranked[i].Strike < ranked[j].Strike
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// MaxPainResult is the settlement strike minimizing aggregate option-writer
// loss, and the loss value at that strike.
type MaxPainResult struct {
	Strike    float64 `json:"max_pain_strike"`
	TotalLoss float64 `json:"max_pain_total_loss"`
}

// MaxPain finds the strike at which option writers collectively lose the
// least if the underlying settles there at expiry.
//
// For each candidate settlement K drawn from the snapshot's distinct
// strikes, every call at strike s contributes (K-s)*OI when K > s and every
// put contributes (s-K)*OI when K < s; the candidate with the smallest total
// wins. Ties go to the strike closest to the underlying value, then to the
// lower strike. The scan is O(S*R) over S distinct strikes and R records,
// which is fine for the tens-to-hundreds of strikes real chains carry.
func MaxPain(snap *chain.Snapshot) (MaxPainResult, error) {
	strikes := snap.Strikes()
	if len(strikes) == 0 {
		return MaxPainResult{}, fmt.Errorf("max pain: %w", faststock.ErrEmptySnapshot)
	}

	best := MaxPainResult{Strike: strikes[0]}
	first := true
	for _, k := range strikes {
		var loss float64
		for _, r := range snap.Records {
			switch r.Side {
			case chain.Call:
				if k > r.Strike {
					loss += (k - r.Strike) * float64(r.OpenInterest)
				}
			case chain.Put:
				if k < r.Strike {
					loss += (r.Strike - k) * float64(r.OpenInterest)
				}
			}
		}

		if first || lessPain(k, loss, best, snap.UnderlyingValue) {
			best = MaxPainResult{Strike: k, TotalLoss: loss}
			first = false
		}
	}
	return best, nil
}

// lessPain reports whether candidate (strike k, loss) beats the current best
// under the loss -> distance-to-underlying -> lower-strike ordering
func lessPain(k, loss float64, best MaxPainResult, underlying float64) bool {
	if loss != best.TotalLoss {
		return loss < best.TotalLoss
	}
	dk := math.Abs(k - underlying)
	db := math.Abs(best.Strike - underlying)
	if dk != db {
		return dk < db
	}
	return k < best.Strike
}
