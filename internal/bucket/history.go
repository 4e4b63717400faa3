package bucket

import (
	"math/big"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"marketscope/internal/pricing"
)

// maxPercentChange guards against division-by-near-zero producing absurd
// percentages: a computed change beyond this magnitude is discarded and the
// caller skips the update entirely.
var maxPercentChange = decimal.NewFromInt(10_000_000)

type pricePoint struct {
	timestamp uint64
	marketCap *big.Int
}

// History is the per-pool trailing-day market-cap window used solely for
// percent-change. Every write prunes entries older than 24 hours; the
// change compares the newest snapshot against the earliest survivor.
type History struct {
	mu     sync.Mutex
	points map[string][]pricePoint
}

func NewHistory() *History {
	return &History{points: make(map[string][]pricePoint)}
}

// Record appends a market-cap snapshot, prunes the window, and returns the
// percent change against the earliest surviving snapshot. ok is false when
// the change fails the sanity bound and must not be persisted; the snapshot
// itself is always kept.
func (h *History) Record(pool string, timestamp uint64, marketCapUsd *big.Int) (change decimal.Decimal, ok bool) {
	key := strings.ToLower(pool)
	snapshot := new(big.Int)
	if marketCapUsd != nil {
		snapshot.Set(marketCapUsd)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	window := h.points[key]
	cutoff := uint64(0)
	if timestamp > DayWindow {
		cutoff = timestamp - DayWindow
	}
	pruned := window[:0]
	for _, p := range window {
		if p.timestamp >= cutoff {
			pruned = append(pruned, p)
		}
	}
	pruned = append(pruned, pricePoint{timestamp: timestamp, marketCap: snapshot})
	h.points[key] = pruned

	earliest := pruned[0]
	change = pricing.PercentChange(snapshot, earliest.marketCap)
	if change.Abs().GreaterThan(maxPercentChange) {
		return decimal.Zero, false
	}
	return change, true
}

// Len returns the number of surviving snapshots for a pool.
func (h *History) Len(pool string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.points[strings.ToLower(pool)])
}
