package pressure

import (
	"fmt"
	"math"
	"testing"
	"time"

	"solana-arb-engine/internal/domain"
)

func whiff(mint, direction string, confidence float32) domain.WhiffEvent {
	return domain.WhiffEvent{
		WhiffType:  "swap_burst",
		Mint:       mint,
		Confidence: confidence,
		Direction:  direction,
		Source:     "test",
	}
}

func approx32(got, want float32) bool {
	return math.Abs(float64(got-want)) < 1e-6
}

func TestCollapse_LatestPerMint(t *testing.T) {
	b := New(100)
	base := time.Now()

	// A burst: four packets for BONK in three milliseconds, one for WIF.
	b.Push(whiff("BONK", domain.WhiffBullish, 0.5), base)
	b.Push(whiff("BONK", domain.WhiffBullish, 0.6), base.Add(1*time.Millisecond))
	b.Push(whiff("WIF", domain.WhiffBearish, 0.4), base.Add(1*time.Millisecond))
	b.Push(whiff("BONK", domain.WhiffVolatile, 0.9), base.Add(3*time.Millisecond))

	now := base.Add(5 * time.Millisecond)
	collapsed := b.Collapse(time.Second, now)

	if len(collapsed) != 2 {
		t.Fatalf("collapsed %d events, want one per mint (2)", len(collapsed))
	}
	byMint := make(map[string]domain.WhiffEvent)
	for _, ev := range collapsed {
		byMint[ev.Mint] = ev
	}
	if byMint["BONK"].Direction != domain.WhiffVolatile {
		t.Errorf("BONK collapsed to %q, want the latest event (volatile)", byMint["BONK"].Direction)
	}
	if byMint["WIF"].Direction != domain.WhiffBearish {
		t.Errorf("WIF collapsed to %q", byMint["WIF"].Direction)
	}
}

func TestCollapse_WindowExcludesOldEvents(t *testing.T) {
	b := New(100)
	base := time.Now()

	b.Push(whiff("BONK", domain.WhiffBullish, 0.5), base)
	b.Push(whiff("WIF", domain.WhiffBullish, 0.5), base.Add(900*time.Millisecond))

	// Only WIF falls inside the 500ms window.
	collapsed := b.Collapse(500*time.Millisecond, base.Add(time.Second))
	if len(collapsed) != 1 || collapsed[0].Mint != "WIF" {
		t.Errorf("collapsed = %v, want only WIF", collapsed)
	}
}

func TestPush_RingEviction(t *testing.T) {
	b := New(3)
	base := time.Now()

	for i := 0; i < 5; i++ {
		b.Push(whiff(fmt.Sprintf("MINT%d", i), domain.WhiffBullish, 0.5), base.Add(time.Duration(i)*time.Millisecond))
	}

	if b.Len() != 3 {
		t.Fatalf("len = %d, want capacity 3", b.Len())
	}

	collapsed := b.Collapse(time.Minute, base.Add(time.Second))
	mints := make(map[string]bool)
	for _, ev := range collapsed {
		mints[ev.Mint] = true
	}
	if mints["MINT0"] || mints["MINT1"] {
		t.Error("oldest events should have been evicted")
	}
	for _, m := range []string{"MINT2", "MINT3", "MINT4"} {
		if !mints[m] {
			t.Errorf("%s missing from the retained window", m)
		}
	}
}

func TestPressure_SaturatingAccumulation(t *testing.T) {
	b := New(100)
	now := time.Now()

	b.Push(whiff("BONK", domain.WhiffBullish, 1.0), now)
	state := b.Pressure("BONK")
	if !approx32(state.Bullish, 0.3) {
		t.Errorf("bullish after one full-confidence event = %v, want 0.3", state.Bullish)
	}
	if state.Bearish != 0 || state.Volatile != 0 {
		t.Error("other directions must stay untouched")
	}

	// Repeated pushes saturate at 1.0 rather than growing unbounded.
	for i := 0; i < 10; i++ {
		b.Push(whiff("BONK", domain.WhiffBullish, 1.0), now)
	}
	state = b.Pressure("BONK")
	if state.Bullish != 1.0 {
		t.Errorf("bullish saturated at %v, want exactly 1.0", state.Bullish)
	}
	if state.EventCount != 11 {
		t.Errorf("event count = %d, want 11", state.EventCount)
	}
}

func TestMarketHeat_CappedSum(t *testing.T) {
	b := New(100)
	now := time.Now()

	if b.MarketHeat("UNKNOWN") != 0 {
		t.Error("unknown mint must read zero heat")
	}

	b.Push(whiff("BONK", domain.WhiffBullish, 1.0), now)
	b.Push(whiff("BONK", domain.WhiffBearish, 1.0), now)
	if got := b.MarketHeat("BONK"); !approx32(got, 0.6) {
		t.Errorf("heat = %v, want 0.6", got)
	}

	// Saturate all three directions; the combined heat caps at 1.0.
	for i := 0; i < 10; i++ {
		b.Push(whiff("BONK", domain.WhiffBullish, 1.0), now)
		b.Push(whiff("BONK", domain.WhiffBearish, 1.0), now)
		b.Push(whiff("BONK", domain.WhiffVolatile, 1.0), now)
	}
	if got := b.MarketHeat("BONK"); got != 1.0 {
		t.Errorf("heat = %v, want capped 1.0", got)
	}
}

func TestPrune_EvictsOldAndDecaysIdle(t *testing.T) {
	b := New(100)
	base := time.Now()

	b.Push(whiff("BONK", domain.WhiffBullish, 1.0), base)
	b.Push(whiff("WIF", domain.WhiffBullish, 1.0), base.Add(40*time.Second))

	// BONK's event is past max age; its pressure has been idle past the
	// 30s decay window. WIF was just updated, so it keeps full pressure.
	now := base.Add(41 * time.Second)
	b.Prune(10*time.Second, now)

	if b.Len() != 1 {
		t.Errorf("len after prune = %d, want 1", b.Len())
	}
	if got := b.Pressure("BONK").Bullish; !approx32(got, 0.3*0.9) {
		t.Errorf("idle pressure = %v, want decayed %v", got, 0.3*0.9)
	}
	if got := b.Pressure("WIF").Bullish; !approx32(got, 0.3) {
		t.Errorf("fresh pressure = %v, want undecayed 0.3", got)
	}

	// Repeated prunes keep decaying toward zero.
	b.Prune(10*time.Second, now.Add(time.Second))
	if got := b.Pressure("BONK").Bullish; !approx32(got, 0.3*0.9*0.9) {
		t.Errorf("pressure after second prune = %v, want %v", got, 0.3*0.9*0.9)
	}
}

func TestClear(t *testing.T) {
	b := New(10)
	now := time.Now()

	b.Push(whiff("BONK", domain.WhiffBullish, 1.0), now)
	b.Clear()

	if b.Len() != 0 {
		t.Errorf("len after clear = %d", b.Len())
	}
	if b.Pressure("BONK").EventCount != 0 {
		t.Error("pressure state must be dropped on clear")
	}
}
