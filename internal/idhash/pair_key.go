package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePairKey computes a stable key for a pair of trades.
// Formula: SHA256(trade_hash_a|trade_hash_b)
// Returns hex-encoded hash (64 characters). Sequential pair ids change when
// the input changes; the key does not.
func ComputePairKey(tradeHashA, tradeHashB string) string {
	data := fmt.Sprintf("%s|%s", tradeHashA, tradeHashB)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
