package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	faststock "github.com/OMCHOKSI108/faststock-go"
	"github.com/OMCHOKSI108/faststock-go/chain"
)

var expiry = time.Date(2025, 9, 16, 0, 0, 0, 0, time.UTC)

// pair adds one CE and one PE record at a strike
func pair(strike float64, callOI, putOI int64) []chain.OptionRecord {
	return []chain.OptionRecord{
		{Strike: strike, Side: chain.Call, OpenInterest: callOI},
		{Strike: strike, Side: chain.Put, OpenInterest: putOI},
	}
}

func snapshot(underlying float64, records ...[]chain.OptionRecord) *chain.Snapshot {
	var all []chain.OptionRecord
	for _, r := range records {
		all = append(all, r...)
	}
	return chain.NewSnapshot("NIFTY", expiry, underlying, all)
}

func TestComputePCR(t *testing.T) {
	// strikes {100: CE 50 / PE 200}, {110: CE 300 / PE 40}
	snap := snapshot(105, pair(100, 50, 200), pair(110, 300, 40))

	pcr, err := ComputePCR(snap)
	require.NoError(t, err)

	assert.Equal(t, int64(350), pcr.TotalCallOI)
	assert.Equal(t, int64(240), pcr.TotalPutOI)
	assert.InDelta(t, 240.0/350.0, pcr.ByOI, 1e-9)
	assert.False(t, pcr.Undefined)
}

func TestComputePCRNoCallOI(t *testing.T) {
	snap := snapshot(100, pair(100, 0, 100))

	_, err := ComputePCR(snap)
	require.ErrorIs(t, err, faststock.ErrNoCallOpenInterest)
}

func TestComputePCRDegenerate(t *testing.T) {
	// no open interest anywhere: zero ratio, flagged, no error
	snap := snapshot(100, pair(100, 0, 0), pair(110, 0, 0))

	pcr, err := ComputePCR(snap)
	require.NoError(t, err)
	assert.True(t, pcr.Undefined)
	assert.Zero(t, pcr.ByOI)
}

func TestComputePCRByVolume(t *testing.T) {
	snap := chain.NewSnapshot("NIFTY", expiry, 100, []chain.OptionRecord{
		{Strike: 100, Side: chain.Call, OpenInterest: 10, Volume: 400},
		{Strike: 100, Side: chain.Put, OpenInterest: 10, Volume: 100},
	})

	pcr, err := ComputePCR(snap)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, pcr.ByVolume, 1e-9)
}

func TestComputePCREmptySnapshot(t *testing.T) {
	pcr, err := ComputePCR(snapshot(100))
	require.NoError(t, err)
	assert.True(t, pcr.Undefined)
}

func TestTopOpenInterestOrdering(t *testing.T) {
	snap := snapshot(105,
		pair(100, 50, 200),
		pair(110, 300, 40),
		pair(120, 300, 10), // OI tie with 110 calls: lower strike first
		pair(90, 75, 500),
	)

	top, err := TopOpenInterest(snap, 10, CallsOnly)
	require.NoError(t, err)
	require.Len(t, top.Calls, 4)
	assert.Nil(t, top.Puts)

	// descending OI, ties by ascending strike
	for i := 1; i < len(top.Calls); i++ {
		prev, cur := top.Calls[i-1], top.Calls[i]
		assert.GreaterOrEqual(t, prev.OpenInterest, cur.OpenInterest)
		if prev.OpenInterest == cur.OpenInterest {
			assert.Less(t, prev.Strike, cur.Strike)
		}
	}
	assert.Equal(t, OIStrike{Strike: 110, OpenInterest: 300}, top.Calls[0])
	assert.Equal(t, OIStrike{Strike: 120, OpenInterest: 300}, top.Calls[1])
}

func TestTopOpenInterestSingle(t *testing.T) {
	snap := snapshot(105, pair(100, 50, 200), pair(110, 300, 40))

	top, err := TopOpenInterest(snap, 1, CallsOnly)
	require.NoError(t, err)
	require.Len(t, top.Calls, 1)
	assert.Equal(t, OIStrike{Strike: 110, OpenInterest: 300}, top.Calls[0])
}

func TestTopOpenInterestTruncation(t *testing.T) {
	snap := snapshot(105, pair(100, 50, 200), pair(110, 300, 40))

	// topN larger than the number of strikes: return all, never pad
	top, err := TopOpenInterest(snap, 50, BothSides)
	require.NoError(t, err)
	assert.Len(t, top.Calls, 2)
	assert.Len(t, top.Puts, 2)
}

func TestTopOpenInterestInvalidTopN(t *testing.T) {
	snap := snapshot(105, pair(100, 50, 200))

	for _, n := range []int{0, -1, -100} {
		_, err := TopOpenInterest(snap, n, BothSides)
		assert.ErrorIs(t, err, faststock.ErrInvalidArgument, "top_n=%d", n)
	}
}

func TestTopOpenInterestInvalidSide(t *testing.T) {
	snap := snapshot(105, pair(100, 50, 200))

	_, err := TopOpenInterest(snap, 5, SideFilter(42))
	assert.ErrorIs(t, err, faststock.ErrInvalidArgument)
}

func TestMaxPainSymmetric(t *testing.T) {
	// equal OI at strikes symmetric around the underlying: the central
	// strike must win
	snap := snapshot(100, pair(90, 100, 100), pair(100, 100, 100), pair(110, 100, 100))

	got, err := MaxPain(snap)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Strike)

	// manual check of the writer-loss formula at each candidate:
	// K=90:  puts ITM: (100-90)*100 + (110-90)*100 = 3000
	// K=100: calls (100-90)*100 = 1000; puts (110-100)*100 = 1000 -> 2000
	// K=110: calls (110-90)*100 + (110-100)*100 = 3000
	assert.Equal(t, 2000.0, got.TotalLoss)
}

func TestMaxPainEndToEnd(t *testing.T) {
	snap := snapshot(105, pair(100, 50, 200), pair(110, 300, 40))

	got, err := MaxPain(snap)
	require.NoError(t, err)

	// K=100: puts ITM at 110: (110-100)*40 = 400
	// K=110: calls ITM at 100: (110-100)*50 = 500
	assert.Equal(t, 100.0, got.Strike)
	assert.Equal(t, 400.0, got.TotalLoss)
}

func TestMaxPainSingleSidedStrikes(t *testing.T) {
	// a strike with only one side populated contributes only that side
	snap := chain.NewSnapshot("NIFTY", expiry, 100, []chain.OptionRecord{
		{Strike: 90, Side: chain.Call, OpenInterest: 100},
		{Strike: 110, Side: chain.Put, OpenInterest: 100},
	})

	got, err := MaxPain(snap)
	require.NoError(t, err)
	// K=90: put loss (110-90)*100 = 2000
	// K=110: call loss (110-90)*100 = 2000; tie -> closer to underlying 100
	// is equidistant -> lower strike wins
	assert.Equal(t, 90.0, got.Strike)
	assert.Equal(t, 2000.0, got.TotalLoss)
}

func TestMaxPainTieBreakCloserToUnderlying(t *testing.T) {
	snap := chain.NewSnapshot("NIFTY", expiry, 108, []chain.OptionRecord{
		{Strike: 90, Side: chain.Call, OpenInterest: 100},
		{Strike: 110, Side: chain.Put, OpenInterest: 100},
	})

	got, err := MaxPain(snap)
	require.NoError(t, err)
	// same 2000/2000 tie as above but underlying 108 sits nearer 110
	assert.Equal(t, 110.0, got.Strike)
}

func TestMaxPainDeterminism(t *testing.T) {
	snap := snapshot(105, pair(100, 50, 200), pair(110, 300, 40), pair(120, 10, 600))

	first, err := MaxPain(snap)
	require.NoError(t, err)
	second, err := MaxPain(snap)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMaxPainEmptySnapshot(t *testing.T) {
	_, err := MaxPain(snapshot(100))
	require.ErrorIs(t, err, faststock.ErrEmptySnapshot)
}

func TestMaxPainDoesNotMutateSnapshot(t *testing.T) {
	snap := snapshot(105, pair(110, 300, 40), pair(100, 50, 200))
	before := make([]chain.OptionRecord, len(snap.Records))
	copy(before, snap.Records)

	_, err := MaxPain(snap)
	require.NoError(t, err)
	assert.Equal(t, before, snap.Records)
}
