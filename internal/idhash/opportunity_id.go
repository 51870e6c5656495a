package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeOpportunityID computes a deterministic opportunity_id using SHA256.
// Formula: SHA256(base_mint|path|pool_addresses|slot)
// Returns hex-encoded hash (64 characters).
//
// The same cycle discovered twice in the same slot hashes to the same
// id, so repeated scans over an unchanged graph upsert one row instead
// of accumulating duplicates.
func ComputeOpportunityID(
	baseMint string,
	path []string,
	poolAddresses []string,
	slot uint64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		baseMint,
		strings.Join(path, ">"),
		strings.Join(poolAddresses, ">"),
		slot,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
