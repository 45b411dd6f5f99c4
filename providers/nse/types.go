package nse

// Raw shapes of the NSE option-chain payload. Field names follow the wire
// format; the parser in parse.go fills these without reflection because
// index chains run a few hundred KB and the poller fetches them every
// cycle.

// optionChainPayload is the top-level /api/option-chain-* response
type optionChainPayload struct {
	Records chainRecords
}

// chainRecords carries the unfiltered chain plus chain-level metadata
type chainRecords struct {
	ExpiryDates     []string
	UnderlyingValue float64
	Timestamp       string
	Data            []strikeEntry
}

// strikeEntry is one strike row; CE or PE may be absent for illiquid
// strikes
type strikeEntry struct {
	StrikePrice float64
	ExpiryDate  string
	CE          *legEntry
	PE          *legEntry
}

// legEntry is one side of a strike
type legEntry struct {
	OpenInterest      float64
	ChangeInOI        float64
	TotalTradedVolume float64
	LastPrice         float64
	ImpliedVolatility float64
}

// equityQuotePayload is the subset of /api/quote-equity we read
type equityQuotePayload struct {
	Info struct {
		Symbol      string `json:"symbol"`
		CompanyName string `json:"companyName"`
	} `json:"info"`
	PriceInfo struct {
		LastPrice float64 `json:"lastPrice"`
		Change    float64 `json:"change"`
		PChange   float64 `json:"pChange"`
	} `json:"priceInfo"`
}

// allIndicesPayload is the subset of /api/allIndices we read
type allIndicesPayload struct {
	Data []struct {
		Index         string  `json:"index"`
		IndexSymbol   string  `json:"indexSymbol"`
		Last          float64 `json:"last"`
		Variation     float64 `json:"variation"`
		PercentChange float64 `json:"percentChange"`
	} `json:"data"`
}
