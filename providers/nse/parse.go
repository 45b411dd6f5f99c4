package nse

import (
	"fmt"

	"github.com/mailru/easyjson/jlexer"
)

// Hand-written jlexer decoder for the option-chain payload. The payload is
// the hot path: index chains carry 500+ strike rows and the poller refetches
// them every interval, so we skip reflection and everything outside the
// fields we read. See parse_bench_test.go for the comparison against
// encoding/json.

// parseOptionChain decodes the raw option-chain payload
func parseOptionChain(data []byte) (*optionChainPayload, error) {
	in := jlexer.Lexer{Data: data}
	var out optionChainPayload

	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "records":
			decodeRecords(&in, &out.Records)
		default:
			// "filtered" duplicates records for the nearest expiry;
			// skip it along with anything unknown
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	in.Consumed()

	if err := in.Error(); err != nil {
		return nil, fmt.Errorf("parse option chain: %w", err)
	}
	return &out, nil
}

func decodeRecords(in *jlexer.Lexer, out *chainRecords) {
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "expiryDates":
			in.Delim('[')
			for !in.IsDelim(']') {
				out.ExpiryDates = append(out.ExpiryDates, in.String())
				in.WantComma()
			}
			in.Delim(']')
		case "underlyingValue":
			out.UnderlyingValue = in.Float64()
		case "timestamp":
			out.Timestamp = in.String()
		case "data":
			in.Delim('[')
			for !in.IsDelim(']') {
				var entry strikeEntry
				decodeStrikeEntry(in, &entry)
				out.Data = append(out.Data, entry)
				in.WantComma()
			}
			in.Delim(']')
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func decodeStrikeEntry(in *jlexer.Lexer, out *strikeEntry) {
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "strikePrice":
			out.StrikePrice = in.Float64()
		case "expiryDate":
			out.ExpiryDate = in.String()
		case "CE":
			out.CE = new(legEntry)
			decodeLegEntry(in, out.CE)
		case "PE":
			out.PE = new(legEntry)
			decodeLegEntry(in, out.PE)
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func decodeLegEntry(in *jlexer.Lexer, out *legEntry) {
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "openInterest":
			out.OpenInterest = in.Float64()
		case "changeinOpenInterest":
			out.ChangeInOI = in.Float64()
		case "totalTradedVolume":
			out.TotalTradedVolume = in.Float64()
		case "lastPrice":
			out.LastPrice = in.Float64()
		case "impliedVolatility":
			out.ImpliedVolatility = in.Float64()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}
