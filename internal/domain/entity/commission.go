package entity

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// BasisPointsPerUnit is the number of basis points in a rate of 1.0.
const BasisPointsPerUnit = 10000

// ReferralCommission records points credited to an ancestor for one source transaction.
type ReferralCommission struct {
	ID                  uuid.UUID
	NetworkID           uuid.UUID // The closure edge the commission was paid along.
	ReferrerID          uuid.UUID // The ancestor who earned the points.
	ReferredID          uuid.UUID // The user who produced the source transaction.
	Level               int
	SourceTransactionID string
	BaseAmount          int64
	RateBps             int64
	EarnedPoints        int64
	CreatedAt           time.Time
}

// NewReferralCommission builds a commission paid along edge.
func NewReferralCommission(edge *ReferralEdge, sourceTransactionID string, baseAmount, rateBps, earned int64, now time.Time) *ReferralCommission {
	return &ReferralCommission{
		ID:                  uuid.New(),
		NetworkID:           edge.ID,
		ReferrerID:          edge.ReferrerID,
		ReferredID:          edge.ReferredID,
		Level:               edge.Level,
		SourceTransactionID: sourceTransactionID,
		BaseAmount:          baseAmount,
		RateBps:             rateBps,
		EarnedPoints:        earned,
		CreatedAt:           now,
	}
}

// LevelRate is one row of the commission rate table.
type LevelRate struct {
	Level   int
	RateBps int64
}

// RateTable maps an ancestor level to its commission rate in basis points.
// Levels missing from the table earn nothing.
type RateTable struct {
	rates map[int]int64
}

// NewRateTable builds a table from explicit per-level rates.
func NewRateTable(rates ...LevelRate) RateTable {
	t := RateTable{rates: make(map[int]int64, len(rates))}
	for _, r := range rates {
		t.rates[r.Level] = r.RateBps
	}

	return t
}

// RateBps returns the rate for level, zero when unspecified.
func (t RateTable) RateBps(level int) int64 {
	return t.rates[level]
}

// Levels returns the configured levels in ascending order.
func (t RateTable) Levels() []LevelRate {
	out := make([]LevelRate, 0, len(t.rates))
	for level, bps := range t.rates {
		out = append(out, LevelRate{Level: level, RateBps: bps})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })

	return out
}

// Commission computes the points owed at level for base. ok is false when
// base*rate does not fit in an int64. The result truncates toward zero.
func (t RateTable) Commission(base int64, level int) (points, rateBps int64, ok bool) {
	rateBps = t.RateBps(level)
	if rateBps == 0 || base == 0 {
		return 0, rateBps, true
	}
	if base > math.MaxInt64/rateBps {
		return 0, rateBps, false
	}

	return base * rateBps / BasisPointsPerUnit, rateBps, true
}
