// Package pressure absorbs bursty intelligence-event storms and
// coalesces them into a decayed per-mint pressure signal. Free-tier
// providers routinely deliver several packets in the same millisecond;
// the buffer ingests the burst at network speed and lets the consumer
// read one collapsed state per mint instead of every raw event.
package pressure

import (
	"sync"
	"time"

	"solana-arb-engine/internal/domain"
)

// pressureStep is the fraction of an event's confidence added to its
// direction's accumulator on each push.
const pressureStep = 0.3

// decayWindow is how long a mint's pressure survives untouched before
// Prune starts decaying it.
const decayWindow = 30 * time.Second

// decayFactor is applied to each accumulator of an idle mint per Prune
// call.
const decayFactor = 0.9

type bufferedEvent struct {
	event      domain.WhiffEvent
	receivedAt time.Time
}

// PressureState holds the saturating per-direction accumulators for
// one mint. Each value lives in [0, 1].
type PressureState struct {
	Bullish    float32
	Bearish    float32
	Volatile   float32
	EventCount uint32
	LastUpdate time.Time
}

// Buffer is a bounded ring of recent whiff events plus per-mint
// pressure accumulators updated on every push. Oldest events are
// evicted on overflow. Safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	events   []bufferedEvent // ring storage
	head     int             // index of the oldest event
	size     int
	capacity int

	pressure map[string]*PressureState
}

// New creates a buffer holding up to capacity raw events. A
// non-positive capacity falls back to 1 so Push always has room for
// the latest event.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		events:   make([]bufferedEvent, capacity),
		capacity: capacity,
		pressure: make(map[string]*PressureState),
	}
}

// Push records one event. The event's direction accumulator for its
// mint moves toward 1.0 by a fraction of the event's confidence; the
// raw event joins the ring, evicting the oldest entry when full.
func (b *Buffer) Push(event domain.WhiffEvent, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.updatePressure(event, now)

	if b.size == b.capacity {
		b.head = (b.head + 1) % b.capacity
		b.size--
	}
	b.events[(b.head+b.size)%b.capacity] = bufferedEvent{event: event, receivedAt: now}
	b.size++
}

func (b *Buffer) updatePressure(event domain.WhiffEvent, now time.Time) {
	state, ok := b.pressure[event.Mint]
	if !ok {
		state = &PressureState{}
		b.pressure[event.Mint] = state
	}

	step := event.Confidence * pressureStep
	switch event.Direction {
	case domain.WhiffBullish:
		state.Bullish = min(state.Bullish+step, 1.0)
	case domain.WhiffBearish:
		state.Bearish = min(state.Bearish+step, 1.0)
	case domain.WhiffVolatile:
		state.Volatile = min(state.Volatile+step, 1.0)
	}
	state.EventCount++
	state.LastUpdate = now
}

// Collapse returns at most one event per distinct mint: the most
// recent one received within [now-window, now]. Older events from the
// same mint within the window are discarded, which is the whole point
// of the buffer when a burst delivers five packets in one millisecond.
func (b *Buffer) Collapse(window time.Duration, now time.Time) []domain.WhiffEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-window)
	latest := make(map[string]bufferedEvent)

	for i := 0; i < b.size; i++ {
		item := b.events[(b.head+i)%b.capacity]
		if item.receivedAt.Before(cutoff) {
			continue
		}
		if prev, ok := latest[item.event.Mint]; ok && !prev.receivedAt.Before(item.receivedAt) {
			continue
		}
		latest[item.event.Mint] = item
	}

	collapsed := make([]domain.WhiffEvent, 0, len(latest))
	for _, item := range latest {
		collapsed = append(collapsed, item.event)
	}
	return collapsed
}

// Pressure returns a copy of the mint's accumulator state; zero state
// for unknown mints.
func (b *Buffer) Pressure(mint string) PressureState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if state, ok := b.pressure[mint]; ok {
		return *state
	}
	return PressureState{}
}

// MarketHeat collapses the mint's three accumulators to one scalar
// intensity in [0, 1]; zero for unknown mints.
func (b *Buffer) MarketHeat(mint string) float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.pressure[mint]
	if !ok {
		return 0
	}
	return min(state.Bullish+state.Bearish+state.Volatile, 1.0)
}

// Prune evicts ring entries older than maxAge and decays the pressure
// of mints that have been idle longer than the decay window. Pressure
// reflects recent activity, not permanent history.
func (b *Buffer) Prune(maxAge time.Duration, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-maxAge)
	for b.size > 0 && b.events[b.head].receivedAt.Before(cutoff) {
		b.events[b.head] = bufferedEvent{}
		b.head = (b.head + 1) % b.capacity
		b.size--
	}

	decayCutoff := now.Add(-decayWindow)
	for _, state := range b.pressure {
		if state.LastUpdate.Before(decayCutoff) {
			state.Bullish *= decayFactor
			state.Bearish *= decayFactor
			state.Volatile *= decayFactor
		}
	}
}

// Len returns the number of buffered raw events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Clear drops all buffered events and pressure state.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.events)
	b.head = 0
	b.size = 0
	clear(b.pressure)
}
