package chain

import (
	"math"
	"sort"
)

// Strikes returns the distinct strikes present in the snapshot, ascending.
func (s *Snapshot) Strikes() []float64 {
	seen := make(map[float64]struct{}, len(s.Records))
	strikes := make([]float64, 0, len(s.Records))
	for _, r := range s.Records {
		if _, ok := seen[r.Strike]; ok {
			continue
		}
		seen[r.Strike] = struct{}{}
		strikes = append(strikes, r.Strike)
	}
	sort.Float64s(strikes)
	return strikes
}

// BySide returns the records for one side, in snapshot order.
func (s *Snapshot) BySide(side Side) []OptionRecord {
	out := make([]OptionRecord, 0, len(s.Records)/2+1)
	for _, r := range s.Records {
		if r.Side == side {
			out = append(out, r)
		}
	}
	return out
}

// ATMStrike returns the strike closest to the underlying value.
// On an exact midpoint the lower strike wins. Returns 0 for an empty snapshot.
func (s *Snapshot) ATMStrike() float64 {
	strikes := s.Strikes()
	if len(strikes) == 0 {
		return 0
	}
	atm := strikes[0]
	best := math.Abs(strikes[0] - s.UnderlyingValue)
	for _, k := range strikes[1:] {
		if d := math.Abs(k - s.UnderlyingValue); d < best {
			atm, best = k, d
		}
	}
	return atm
}

// Clip returns a copy of the snapshot restricted to n strikes on either side
// of the at-the-money strike. n <= 0 or an empty snapshot returns the
// snapshot unchanged.
func (s *Snapshot) Clip(n int) *Snapshot {
	strikes := s.Strikes()
	if n <= 0 || len(strikes) == 0 {
		return s
	}

	atm := s.ATMStrike()
	atmIdx := sort.SearchFloat64s(strikes, atm)

	lo := atmIdx - n
	if lo < 0 {
		lo = 0
	}
	hi := atmIdx + n
	if hi > len(strikes)-1 {
		hi = len(strikes) - 1
	}

	keep := make(map[float64]struct{}, hi-lo+1)
	for _, k := range strikes[lo : hi+1] {
		keep[k] = struct{}{}
	}

	records := make([]OptionRecord, 0, len(s.Records))
	for _, r := range s.Records {
		if _, ok := keep[r.Strike]; ok {
			records = append(records, r)
		}
	}

	clipped := *s
	clipped.Records = records
	return &clipped
}
