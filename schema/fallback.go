package schema

import (
	"strings"
	"unicode/utf8"

	"github.com/streamingfast/eth-go"
)

// decodeHeuristic is a lossy, best-effort rendering for values without a
// known schema. Store values are most of the time textual (big integers,
// decimals, identifiers) so the raw bytes are kept as a string, and binary
// values are rendered as 0x prefixed hex.
//
// A key shaped like `pair:0xabc` adds the `pair` field with value `0xabc`.
func decodeHeuristic(raw []byte, key string) Fields {
	fields := Fields{ValueField: displayString(raw)}

	if strings.Contains(key, ":") {
		parts := strings.Split(key, ":")
		if parts[0] != "" && parts[0] != ValueField {
			fields[parts[0]] = parts[1]
		}
	}

	return fields
}

func displayString(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return eth.Hex(raw).Pretty()
}
