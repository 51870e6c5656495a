package consensus

import "sync"

// SlotStatus classifies one slot observation against the watermark.
type SlotStatus int

const (
	// SlotStale is below the watermark minus the lag tolerance; the
	// observation must be rejected.
	SlotStale SlotStatus = iota - 1
	// SlotCurrent is within the lag tolerance; accepted without
	// advancing the watermark.
	SlotCurrent
	// SlotNewer advanced the watermark.
	SlotNewer
)

func (s SlotStatus) String() string {
	switch s {
	case SlotNewer:
		return "newer"
	case SlotCurrent:
		return "current"
	default:
		return "stale"
	}
}

// SlotTracker maintains the global slot high-water mark across all
// providers plus per-provider marks kept only for observability; the
// global watermark alone gates acceptance.
type SlotTracker struct {
	mu          sync.Mutex
	latestSlot  uint64
	perProvider map[string]uint64
	maxSlotLag  uint64
}

// NewSlotTracker creates a tracker tolerating maxSlotLag slots behind
// the watermark.
func NewSlotTracker(maxSlotLag uint64) *SlotTracker {
	return &SlotTracker{
		perProvider: make(map[string]uint64),
		maxSlotLag:  maxSlotLag,
	}
}

// UpdateSlot records one observation and classifies it.
func (t *SlotTracker) UpdateSlot(provider string, slot uint64) SlotStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	if slot > t.perProvider[provider] {
		t.perProvider[provider] = slot
	}

	switch {
	case slot > t.latestSlot:
		t.latestSlot = slot
		return SlotNewer
	case slot+t.maxSlotLag >= t.latestSlot:
		return SlotCurrent
	default:
		return SlotStale
	}
}

// IsAcceptable reports whether slot is within the lag tolerance,
// without recording anything.
func (t *SlotTracker) IsAcceptable(slot uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slot+t.maxSlotLag >= t.latestSlot
}

// LatestSlot returns the current watermark.
func (t *SlotTracker) LatestSlot() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latestSlot
}

// ProviderSlots returns a copy of the per-provider high-water marks.
func (t *SlotTracker) ProviderSlots() map[string]uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	slots := make(map[string]uint64, len(t.perProvider))
	for p, s := range t.perProvider {
		slots[p] = s
	}
	return slots
}

// ResetProvider forgets one provider's high-water mark. The global
// watermark stays: chain slots only advance, so marks from the other
// providers remain valid across one provider's reconnect.
func (t *SlotTracker) ResetProvider(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.perProvider, provider)
}

// Reset drops all slot state, e.g. after a reconnect where prior
// watermarks are meaningless.
func (t *SlotTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latestSlot = 0
	t.perProvider = make(map[string]uint64)
}
