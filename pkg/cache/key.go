package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Signature returns the deterministic identity of an (endpoint, parameter
// set) request: the hex SHA-256 of the endpoint concatenated with the
// canonical parameter serialization. Signatures are stable across process
// restarts and across parameter insertion order.
func Signature(endpoint string, params map[string]string) string {
	sum := sha256.Sum256(append([]byte(endpoint), CanonicalParams(params)...))
	return hex.EncodeToString(sum[:])
}

// CanonicalParams serializes params as a JSON object with keys in sorted
// order. A nil map serializes identically to an empty one.
func CanonicalParams(params map[string]string) []byte {
	if params == nil {
		params = map[string]string{}
	}
	// encoding/json marshals map keys in sorted order, which gives the
	// deterministic serialization the signature depends on.
	data, err := json.Marshal(params)
	if err != nil {
		// A map[string]string cannot fail to marshal.
		panic(err)
	}
	return data
}
