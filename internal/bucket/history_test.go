package bucket

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

const historyPool = "0xcccc000000000000000000000000000000000001"

func TestPercentChangeAgainstEarliest(t *testing.T) {
	h := NewHistory()
	base := uint64(1_700_000_000)

	if change, ok := h.Record(historyPool, base, big.NewInt(100)); !ok || !change.IsZero() {
		t.Fatalf("first point: change=%s ok=%v", change, ok)
	}
	h.Record(historyPool, base+100, big.NewInt(120))
	change, ok := h.Record(historyPool, base+200, big.NewInt(150))
	if !ok {
		t.Fatalf("change discarded")
	}
	if !change.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("change vs earliest: got %s, want 50", change)
	}
}

func TestPruneTrailingDay(t *testing.T) {
	h := NewHistory()
	base := uint64(1_700_000_000)

	h.Record(historyPool, base, big.NewInt(100))
	h.Record(historyPool, base+10, big.NewInt(200))
	// A write one day later evicts both old points.
	change, ok := h.Record(historyPool, base+DayWindow+11, big.NewInt(400))
	if !ok {
		t.Fatalf("change discarded")
	}
	if !change.IsZero() {
		t.Fatalf("pruned window should compare against itself, got %s", change)
	}
	if h.Len(historyPool) != 1 {
		t.Fatalf("window length: %d", h.Len(historyPool))
	}
}

func TestZeroEarliestSnapshotYieldsZero(t *testing.T) {
	h := NewHistory()
	base := uint64(1_700_000_000)

	h.Record(historyPool, base, big.NewInt(0))
	change, ok := h.Record(historyPool, base+1, big.NewInt(5000))
	if !ok {
		t.Fatalf("zero earliest must not be discarded")
	}
	if !change.IsZero() {
		t.Fatalf("got %s, want 0", change)
	}
}

func TestSanityBoundDiscardsUpdate(t *testing.T) {
	h := NewHistory()
	base := uint64(1_700_000_000)

	h.Record(historyPool, base, big.NewInt(1))
	huge := new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)
	change, ok := h.Record(historyPool, base+1, huge)
	if ok {
		t.Fatalf("absurd change must be discarded, got %s", change)
	}
	if !change.IsZero() {
		t.Fatalf("discarded change must be zero, got %s", change)
	}
	// The snapshot itself survives for later comparisons.
	if h.Len(historyPool) != 2 {
		t.Fatalf("window length: %d", h.Len(historyPool))
	}
}
