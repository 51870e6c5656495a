package ingestion

import (
	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// addressLen is the byte length of a Solana public key.
const addressLen = 32

// decodeAddress decodes a base58 address and verifies its length.
func decodeAddress(s string) ([]byte, bool) {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != addressLen {
		return nil, false
	}
	return raw, true
}

// isValidMint reports whether s is a well-formed mint address.
func isValidMint(s string) bool {
	_, ok := decodeAddress(s)
	return ok
}

// isValidPool reports whether s is a well-formed pool address. AMM
// pools are program-derived accounts, which never lie on the ed25519
// curve; an on-curve address is a wallet, not a pool.
func isValidPool(s string) bool {
	raw, ok := decodeAddress(s)
	if !ok {
		return false
	}
	return !isOnCurve(raw)
}

func isOnCurve(point []byte) bool {
	if len(point) != addressLen {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
