package payments

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Integrity is the checkout signature:
// sha256(reference + amount_in_cents + currency + secret), hex encoded.
func Integrity(reference string, amountCents int64, currency, secret string) string {
	return sha256Hex(reference + strconv.FormatInt(amountCents, 10) + currency + secret)
}

// EventChecksum concatenates the values of the signed properties (looked up in
// the data object), the timestamp and the secret, and hashes the chain.
func EventChecksum(ev Event, secret string) (string, error) {
	props := ev.Signature.Properties
	if len(props) == 0 {
		props = defaultProperties
	}

	dec := json.NewDecoder(bytes.NewReader(ev.Data))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return "", fmt.Errorf("decode data: %w", err)
	}

	var b strings.Builder
	for _, p := range props {
		v, ok := lookup(data, p)
		if !ok {
			return "", fmt.Errorf("signed property %q not in event", p)
		}
		b.WriteString(v)
	}
	b.WriteString(ev.Timestamp)
	b.WriteString(secret)
	return sha256Hex(b.String()), nil
}

// Verify recomputes the checksum and compares it case-insensitively.
func Verify(ev Event, secret string) bool {
	if ev.Checksum == "" {
		return false
	}
	sum, err := EventChecksum(ev, secret)
	if err != nil {
		return false
	}
	return strings.EqualFold(sum, ev.Checksum)
}

func lookup(data map[string]any, path string) (string, bool) {
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = m[part]; !ok {
			return "", false
		}
	}
	switch v := cur.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case map[string]any, []any:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
