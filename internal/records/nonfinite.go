package records

import (
	"bytes"
	"strconv"

	"styletransfer/internal/domain"
)

var nonFiniteTokens = []struct {
	token []byte
	value []byte
}{
	{[]byte("-Infinity"), []byte(strconv.FormatFloat(-domain.LossCeiling, 'f', -1, 64))},
	{[]byte("Infinity"), []byte(strconv.FormatFloat(domain.LossCeiling, 'f', -1, 64))},
	{[]byte("NaN"), []byte("0")},
}

// replaceNonFinite rewrites the bare Infinity, -Infinity and NaN literals that
// older documents contain into numbers encoding/json accepts. Text inside
// strings is left alone.
func replaceNonFinite(raw []byte) []byte {
	if !bytes.Contains(raw, []byte("Infinity")) && !bytes.Contains(raw, []byte("NaN")) {
		return raw
	}
	out := make([]byte, 0, len(raw))
	inString, escaped := false, false
	for i := 0; i < len(raw); {
		c := raw[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			i++
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			i++
			continue
		}
		replaced := false
		for _, nf := range nonFiniteTokens {
			if bytes.HasPrefix(raw[i:], nf.token) {
				out = append(out, nf.value...)
				i += len(nf.token)
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, c)
			i++
		}
	}
	return out
}
