package consensus

import (
	"fmt"
	"sync/atomic"
)

// Engine is the gate between raw provider notifications and trusted
// state: staleness check first (a cheap integer comparison rejecting
// the common case), signature dedup second. Safe for concurrent use
// from every provider reader.
type Engine struct {
	dedup *SignatureDedup
	slots *SlotTracker

	accepted   atomic.Uint64
	duplicates atomic.Uint64
	stale      atomic.Uint64
}

// Stats is a snapshot of the engine's counters.
type Stats struct {
	Accepted   uint64
	Duplicates uint64
	Stale      uint64
	LatestSlot uint64
	DedupSize  int
}

// NewEngine creates a consensus engine holding up to maxSignatures
// recent signatures and tolerating maxSlotLag slots behind the
// watermark.
func NewEngine(maxSignatures int, maxSlotLag uint64) (*Engine, error) {
	if maxSignatures <= 0 {
		return nil, fmt.Errorf("max signatures must be positive, got %d", maxSignatures)
	}
	dedup, err := NewSignatureDedup(maxSignatures)
	if err != nil {
		return nil, fmt.Errorf("create signature dedup: %w", err)
	}
	return &Engine{
		dedup: dedup,
		slots: NewSlotTracker(maxSlotLag),
	}, nil
}

// Verdict classifies one arrival's fate.
type Verdict int

const (
	Accepted Verdict = iota
	Duplicate
	Stale
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Evaluate classifies an arrival: fresh by slot and first by signature
// means Accepted. Duplicates and stale arrivals are normal filtering
// outcomes counted for monitoring, never errors.
func (e *Engine) Evaluate(provider, signature string, slot uint64) Verdict {
	if e.slots.UpdateSlot(provider, slot) == SlotStale {
		e.stale.Add(1)
		return Stale
	}

	if !e.dedup.IsNew(signature) {
		e.duplicates.Add(1)
		return Duplicate
	}

	e.accepted.Add(1)
	return Accepted
}

// ShouldProcess reports whether this arrival is the one to act on.
func (e *Engine) ShouldProcess(provider, signature string, slot uint64) bool {
	return e.Evaluate(provider, signature, slot) == Accepted
}

// IsSlotFresh checks slot freshness without recording the observation.
func (e *Engine) IsSlotFresh(slot uint64) bool {
	return e.slots.IsAcceptable(slot)
}

// LatestSlot returns the global watermark.
func (e *Engine) LatestSlot() uint64 {
	return e.slots.LatestSlot()
}

// ProviderSlots returns per-provider high-water marks for debugging.
func (e *Engine) ProviderSlots() map[string]uint64 {
	return e.slots.ProviderSlots()
}

// Snapshot returns current counters.
func (e *Engine) Snapshot() Stats {
	return Stats{
		Accepted:   e.accepted.Load(),
		Duplicates: e.duplicates.Load(),
		Stale:      e.stale.Load(),
		LatestSlot: e.slots.LatestSlot(),
		DedupSize:  e.dedup.Len(),
	}
}

// ResetProvider forgets one provider's slot mark after its stream
// reconnects. The dedup set and global watermark are shared with the
// other providers and stay intact: flushing them would re-admit
// duplicates and stale arrivals from streams that never went down.
func (e *Engine) ResetProvider(provider string) {
	e.slots.ResetProvider(provider)
}

// Reset drops all consensus state and counters, for a full restart of
// every stream at once.
func (e *Engine) Reset() {
	e.dedup.Clear()
	e.slots.Reset()
	e.accepted.Store(0)
	e.duplicates.Store(0)
	e.stale.Store(0)
}
