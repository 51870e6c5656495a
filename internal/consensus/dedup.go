// Package consensus gates the redundant multi-provider event race:
// each logical event is processed once, from the freshest arrival,
// no matter how many providers deliver it.
package consensus

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// SignatureDedup is a bounded first-arrival-wins filter over
// transaction signatures. Capacity is enforced by a true LRU, so under
// sustained load the entries evicted first are the ones least likely
// to be replayed. Eviction can only re-admit an old signature, never
// reject a genuinely new one.
type SignatureDedup struct {
	seen *lru.Cache[string, struct{}]
}

// NewSignatureDedup creates a dedup filter holding up to maxSize
// signatures.
func NewSignatureDedup(maxSize int) (*SignatureDedup, error) {
	seen, err := lru.New[string, struct{}](maxSize)
	if err != nil {
		return nil, err
	}
	return &SignatureDedup{seen: seen}, nil
}

// IsNew records the signature and reports whether this was its first
// arrival. Safe for concurrent use.
func (d *SignatureDedup) IsNew(signature string) bool {
	present, _ := d.seen.ContainsOrAdd(signature, struct{}{})
	return !present
}

// Len returns the number of signatures currently held.
func (d *SignatureDedup) Len() int {
	return d.seen.Len()
}

// Clear drops all remembered signatures.
func (d *SignatureDedup) Clear() {
	d.seen.Purge()
}
