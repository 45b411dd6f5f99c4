package analytics

import (
	"github.com/oapi-codegen/runtime/types"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/chain"
)

// Summary bundles every metric for one snapshot, matching what the
// /analytics/summary endpoint returns.
type Summary struct {
	UnderlyingSymbol string        `json:"underlying_symbol"`
	UnderlyingValue  float64       `json:"underlying_value"`
	Expiry           string        `json:"expiry"`
	ATMStrike        float64       `json:"atm_strike"`
	PCR              PCR           `json:"pcr"`
	TopOI            TopOI         `json:"top_oi"`
	MaxPain          MaxPainResult `json:"max_pain"`
}

// Summarize computes PCR, top open interest on both sides and max pain in
// one pass over the snapshot. topN <= 0 falls back to DefaultTopN.
//
// A snapshot with puts but no calls still fails with ErrNoCallOpenInterest:
// a summary with a silently missing ratio would be misleading.
func Summarize(snap *chain.Snapshot, topN int) (Summary, error) {
	if len(snap.Records) == 0 {
		return Summary{}, faststock.ErrEmptySnapshot
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	pcr, err := ComputePCR(snap)
	if err != nil {
		return Summary{}, err
	}

	topOI, err := TopOpenInterest(snap, topN, BothSides)
	if err != nil {
		return Summary{}, err
	}

	maxPain, err := MaxPain(snap)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		UnderlyingSymbol: snap.UnderlyingSymbol,
		UnderlyingValue:  snap.UnderlyingValue,
		Expiry:           snap.Expiry.Format(types.DateFormat),
		ATMStrike:        snap.ATMStrike(),
		PCR:              pcr,
		TopOI:            topOI,
		MaxPain:          maxPain,
	}, nil
}
