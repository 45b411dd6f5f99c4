// Package chain defines the canonical option-chain data model shared by the
// upstream providers, the analytics engine and the HTTP layer. Providers
// normalize their native response shapes into these types before anything
// downstream sees them.
package chain

import (
	"fmt"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime/types"

	faststock "github.com/OMCHOKSI108/faststock-go"
)

// Side identifies whether an option record is a call or a put.
type Side int

const (
	// Call is a call (CE) option
	Call Side = iota
	// Put is a put (PE) option
	Put
)

// String returns the canonical side label
func (s Side) String() string {
	switch s {
	case Call:
		return "CALL"
	case Put:
		return "PUT"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// ParseSide converts an upstream side label to a Side.
// Accepts CALL/PUT and the NSE shorthand CE/PE, case-insensitively.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "CE":
		return Call, nil
	case "PUT", "PE":
		return Put, nil
	default:
		return 0, fmt.Errorf("%w: %q", faststock.ErrUnknownSide, s)
	}
}

// MarshalJSON encodes the side as its canonical label
func (s Side) MarshalJSON() ([]byte, error) {
	switch s {
	case Call:
		return []byte(`"CALL"`), nil
	case Put:
		return []byte(`"PUT"`), nil
	default:
		return nil, fmt.Errorf("%w: %d", faststock.ErrUnknownSide, int(s))
	}
}

// UnmarshalJSON decodes CALL/PUT/CE/PE labels
func (s *Side) UnmarshalJSON(data []byte) error {
	side, err := ParseSide(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// OptionRecord is one option contract row: a single strike on a single side.
type OptionRecord struct {
	Strike       float64 `json:"strike"`
	Side         Side    `json:"side"`
	OpenInterest int64   `json:"open_interest"`
	LastPrice    float64 `json:"last_price,omitempty"`
	HasLastPrice bool    `json:"-"` // false when no trade occurred
	Volume       int64   `json:"volume,omitempty"`
}

// Snapshot is one point-in-time view of an option chain for a single
// underlying and expiry. A snapshot is never mutated after construction;
// all helpers allocate their results.
type Snapshot struct {
	UnderlyingSymbol string         `json:"underlying_symbol"`
	Expiry           types.Date     `json:"expiry"`
	UnderlyingValue  float64        `json:"underlying_value"`
	FetchedAt        time.Time      `json:"fetched_at"`
	Records          []OptionRecord `json:"records"`
}

// NewSnapshot constructs a snapshot with the fetch time set to now
func NewSnapshot(symbol string, expiry time.Time, underlying float64, records []OptionRecord) *Snapshot {
	return &Snapshot{
		UnderlyingSymbol: symbol,
		Expiry:           types.Date{Time: expiry},
		UnderlyingValue:  underlying,
		FetchedAt:        time.Now().UTC(),
		Records:          records,
	}
}

// Validate checks the structural invariants a provider must guarantee
// before handing a snapshot to the analytics engine
func (s *Snapshot) Validate() error {
	for i, r := range s.Records {
		if r.Strike <= 0 {
			return fmt.Errorf("%w: record %d has non-positive strike %v", faststock.ErrInvalidArgument, i, r.Strike)
		}
		if r.OpenInterest < 0 {
			return fmt.Errorf("%w: record %d has negative open interest %d", faststock.ErrInvalidArgument, i, r.OpenInterest)
		}
		if r.Volume < 0 {
			return fmt.Errorf("%w: record %d has negative volume %d", faststock.ErrInvalidArgument, i, r.Volume)
		}
		if r.Side != Call && r.Side != Put {
			return fmt.Errorf("%w: record %d", faststock.ErrUnknownSide, i)
		}
	}
	return nil
}
