package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ConfigHash computes the lowercase hex digest of the canonical JSON
// encoding of v (§3 "Artifact hash"). Two configs that are semantically
// equal — same values, possibly decoded from reordered YAML keys or
// differently-formatted numeric literals — produce the same hash because
// they round-trip to the same Go struct before this function ever sees
// them; encoding a struct is already key-order-stable.
func ConfigHash(v any) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON returns the canonical JSON bytes used both to compute
// ConfigHash and to write config.json (§6 "Config snapshot").
func CanonicalJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
