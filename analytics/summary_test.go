package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	faststock "github.com/OMCHOKSI108/faststock-go"
)

func TestSummarize(t *testing.T) {
	snap := snapshot(105, pair(100, 50, 200), pair(110, 300, 40))

	sum, err := Summarize(snap, 0) // 0 falls back to the default depth
	require.NoError(t, err)

	assert.Equal(t, "NIFTY", sum.UnderlyingSymbol)
	assert.Equal(t, 105.0, sum.UnderlyingValue)
	assert.Equal(t, "2025-09-16", sum.Expiry)
	assert.Equal(t, 100.0, sum.ATMStrike) // 105 is equidistant; lower strike wins
	assert.InDelta(t, 240.0/350.0, sum.PCR.ByOI, 1e-9)
	assert.Equal(t, 100.0, sum.MaxPain.Strike)
	assert.Len(t, sum.TopOI.Calls, 2)
	assert.Len(t, sum.TopOI.Puts, 2)
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(snapshot(100), 5)
	require.ErrorIs(t, err, faststock.ErrEmptySnapshot)
}

func TestSummarizeNoCallOI(t *testing.T) {
	_, err := Summarize(snapshot(100, pair(100, 0, 500)), 5)
	require.ErrorIs(t, err, faststock.ErrNoCallOpenInterest)
}
