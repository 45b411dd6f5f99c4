package faststock

import "time"

// Quote is a point-in-time price for any instrument, regardless of which
// provider produced it
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	PercentChange float64   `json:"percent_change"`
	Currency      string    `json:"currency,omitempty"`
	Source        string    `json:"source"`
	AsOf          time.Time `json:"as_of"`
}

// Candle is one OHLCV bar
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}
