package nse

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

// buildChainPayload generates a payload shaped like a live index chain
func buildChainPayload(strikes int) []byte {
	var b strings.Builder
	b.WriteString(`{"records":{"expiryDates":["16-Sep-2025","28-Oct-2025"],"underlyingValue":24585.05,"timestamp":"16-Sep-2025 15:30:00","data":[`)
	for i := 0; i < strikes; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		strike := 22000 + i*50
		fmt.Fprintf(&b,
			`{"strikePrice":%d,"expiryDate":"16-Sep-2025",`+
				`"CE":{"openInterest":%d,"changeinOpenInterest":120,"totalTradedVolume":%d,"lastPrice":%d.5,"impliedVolatility":14.2},`+
				`"PE":{"openInterest":%d,"changeinOpenInterest":-80,"totalTradedVolume":%d,"lastPrice":%d.25,"impliedVolatility":15.8}}`,
			strike, 1000+i, 500+i, 300+i, 2000+i, 700+i, 250+i)
	}
	b.WriteString(`]},"filtered":{"data":[]}}`)
	return []byte(b.String())
}

func benchmarkParse(b *testing.B, strikes int) {
	payload := buildChainPayload(strikes)
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := parseOptionChain(payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseOptionChain50(b *testing.B)  { benchmarkParse(b, 50) }
func BenchmarkParseOptionChain200(b *testing.B) { benchmarkParse(b, 200) }
func BenchmarkParseOptionChain500(b *testing.B) { benchmarkParse(b, 500) }

// stdChainPayload mirrors optionChainPayload with tags so the reflection
// baseline decodes the same fields
type stdChainPayload struct {
	Records struct {
		ExpiryDates     []string `json:"expiryDates"`
		UnderlyingValue float64  `json:"underlyingValue"`
		Timestamp       string   `json:"timestamp"`
		Data            []struct {
			StrikePrice float64 `json:"strikePrice"`
			ExpiryDate  string  `json:"expiryDate"`
			CE          *struct {
				OpenInterest      float64 `json:"openInterest"`
				ChangeInOI        float64 `json:"changeinOpenInterest"`
				TotalTradedVolume float64 `json:"totalTradedVolume"`
				LastPrice         float64 `json:"lastPrice"`
				ImpliedVolatility float64 `json:"impliedVolatility"`
			} `json:"CE"`
			PE *struct {
				OpenInterest      float64 `json:"openInterest"`
				ChangeInOI        float64 `json:"changeinOpenInterest"`
				TotalTradedVolume float64 `json:"totalTradedVolume"`
				LastPrice         float64 `json:"lastPrice"`
				ImpliedVolatility float64 `json:"impliedVolatility"`
			} `json:"PE"`
		} `json:"data"`
	} `json:"records"`
}

// BenchmarkParseOptionChainStdlib is the encoding/json baseline the jlexer
// decoder is measured against
func BenchmarkParseOptionChainStdlib(b *testing.B) {
	payload := buildChainPayload(200)
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		var out stdChainPayload
		if err := json.Unmarshal(payload, &out); err != nil {
			b.Fatal(err)
		}
	}
}
