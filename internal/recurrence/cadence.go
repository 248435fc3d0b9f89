package recurrence

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cleared-dev/mailtx/internal/matcher"
	"github.com/cleared-dev/mailtx/internal/model"
)

// MinConfidence is the exclusive lower bound for emitting a record.
const MinConfidence = 0.6

type window struct {
	cadence             model.Cadence
	minGap, maxGap      float64
	maxStddev           float64
	base, step, ceiling float64
}

// windows are checked in order; their gap ranges do not overlap.
var windows = []window{
	{model.CadenceWeekly, 6, 8, 1, 0.50, 0.08, 0.90},
	{model.CadenceMonthly, 28, 31, 3, 0.60, 0.10, 0.95},
	{model.CadenceQuarterly, 85, 95, 5, 0.62, 0.10, 0.90},
	{model.CadenceYearly, 360, 370, 10, 0.65, 0.10, 0.90},
}

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://cleared.dev/mailtx/recurring"))

// RecordID is the stable identifier for a (service, amount) pair.
func RecordID(service string, amount int64) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%s\x00%d", service, amount))).String()
}

type seriesKey struct {
	merchant string
	amount   int64
}

// Classify infers recurring payments from a transaction history. Charges are
// grouped by merchant and exact amount. Unknown and placeholder merchants are
// skipped since they pool unrelated charges. Repeated charges on the same date
// count once. The result is sorted by
// service name, then amount.
func Classify(history []model.ParsedTransaction) []model.RecurringPayment {
	series := make(map[seriesKey]map[time.Time]struct{})
	for _, t := range history {
		if !namedMerchant(t.Merchant) || t.Date.IsZero() {
			continue
		}
		k := seriesKey{t.Merchant, t.Amount}
		if series[k] == nil {
			series[k] = make(map[time.Time]struct{})
		}
		series[k][model.DateOf(t.Date)] = struct{}{}
	}

	var out []model.RecurringPayment
	for k, set := range series {
		if len(set) < 2 {
			continue
		}
		if rec, ok := classifySeries(k, set); ok {
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ServiceName != out[j].ServiceName {
			return out[i].ServiceName < out[j].ServiceName
		}
		return out[i].Amount < out[j].Amount
	})
	return out
}

func namedMerchant(m string) bool {
	return m != "" && m != model.UnknownMerchant && !matcher.IsPlaceholder(m)
}

func classifySeries(k seriesKey, set map[time.Time]struct{}) (model.RecurringPayment, bool) {
	dates := make([]time.Time, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	gaps := make([]float64, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		gaps[i-1] = math.Round(dates[i].Sub(dates[i-1]).Hours() / 24)
	}
	mean, sd := meanStddev(gaps)

	for _, w := range windows {
		if mean < w.minGap || mean > w.maxGap || sd > w.maxStddev {
			continue
		}
		n := len(dates)
		conf := math.Min(w.ceiling, w.base+w.step*float64(n-2))
		if conf <= MinConfidence {
			return model.RecurringPayment{}, false
		}
		last := dates[n-1]
		return model.RecurringPayment{
			ID:               RecordID(k.merchant, k.amount),
			ServiceName:      k.merchant,
			Amount:           k.amount,
			Cadence:          w.cadence,
			ObservationCount: n,
			FirstObserved:    dates[0],
			LastObserved:     last,
			PredictedNext:    last.AddDate(0, 0, int(math.Round(mean))),
			Confidence:       conf,
		}, true
	}
	return model.RecurringPayment{}, false
}
