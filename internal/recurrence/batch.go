// Package recurrence detects repeating charges: a cheap per-batch flag for
// similar amounts seen together, and a cadence classifier over full history.
package recurrence

import (
	"math"

	"github.com/cleared-dev/mailtx/internal/model"
)

const (
	// OverseasKey pools every overseas charge of a batch into one group.
	OverseasKey = "overseas"

	batchAbsTolerance = 50
	batchRelTolerance = 0.05
	overseasBonus     = 0.05
)

// FlagBatch marks transactions whose group amounts are tightly clustered as
// preliminary subscriptions. Groups are keyed by canonical merchant, except
// that all overseas charges share one group. A flagged overseas cluster also
// gains a small confidence bonus. Flags are only ever set and confidence only
// ever raised. The input slice is not modified.
func FlagBatch(txns []model.ParsedTransaction) []model.ParsedTransaction {
	out := make([]model.ParsedTransaction, len(txns))
	copy(out, txns)

	groups := make(map[string][]int)
	for i, t := range out {
		k := batchKey(t)
		groups[k] = append(groups[k], i)
	}

	for key, idx := range groups {
		if len(idx) < 2 {
			continue
		}
		amounts := make([]float64, len(idx))
		for j, i := range idx {
			amounts[j] = float64(out[i].Amount)
		}
		mean, sd := meanStddev(amounts)
		if sd > math.Max(batchAbsTolerance, batchRelTolerance*mean) {
			continue
		}
		for _, i := range idx {
			out[i].PrelimSubscription = true
			if key == OverseasKey {
				out[i].Confidence = math.Min(1.0, out[i].Confidence+overseasBonus)
			}
		}
	}
	return out
}

func batchKey(t model.ParsedTransaction) string {
	if t.IsOverseas {
		return OverseasKey
	}
	return t.Merchant
}
