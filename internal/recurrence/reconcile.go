package recurrence

import (
	"sort"

	"github.com/cleared-dev/mailtx/internal/model"
)

// Changes counts what Reconcile did.
type Changes struct {
	Inserted  int
	Refreshed int
}

// Reconcile merges freshly classified records into the stored set: records
// with an unseen ID are inserted, known ones are replaced by the fresh values,
// and stored records the classifier no longer produces are kept as they are.
func Reconcile(existing, fresh []model.RecurringPayment) ([]model.RecurringPayment, Changes) {
	var ch Changes
	pos := make(map[string]int, len(existing))
	out := make([]model.RecurringPayment, len(existing), len(existing)+len(fresh))
	copy(out, existing)
	for i, r := range out {
		pos[r.ID] = i
	}

	for _, r := range fresh {
		if i, ok := pos[r.ID]; ok {
			out[i] = r
			ch.Refreshed++
			continue
		}
		pos[r.ID] = len(out)
		out = append(out, r)
		ch.Inserted++
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ServiceName != out[j].ServiceName {
			return out[i].ServiceName < out[j].ServiceName
		}
		return out[i].Amount < out[j].Amount
	})
	return out, ch
}
