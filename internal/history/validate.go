package history

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/cleared-dev/mailtx/internal/model"
)

// Rules checked by the validators.
const (
	RuleAmount     = "amount"
	RuleDate       = "date"
	RuleTime       = "time"
	RuleConfidence = "confidence"
	RuleMerchant   = "merchant"
	RuleSource     = "source"
	RuleCadence    = "cadence"
	RuleObserved   = "observed"
	RuleID         = "id"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Rule        string
	Ref         string // mail ID or record ID
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Rule, e.Ref, e.Description)
}

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidateTransaction checks the invariants every emitted or stored
// transaction must hold.
func ValidateTransaction(t model.ParsedTransaction) []ValidationError {
	var errs []ValidationError
	add := func(rule, format string, args ...any) {
		errs = append(errs, ValidationError{Rule: rule, Ref: t.MailID, Description: fmt.Sprintf(format, args...)})
	}

	if t.Amount <= 0 {
		add(RuleAmount, "amount must be positive, got %d", t.Amount)
	}
	if !validDay(t.Date) {
		add(RuleDate, "date %s is not a valid calendar date", t.Date.Format(dateFormat))
	}
	if t.Time != "" && !clockPattern.MatchString(t.Time) {
		add(RuleTime, "time %q is not HH:MM", t.Time)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		add(RuleConfidence, "confidence %v outside [0,1]", t.Confidence)
	}
	if t.Merchant == "" {
		add(RuleMerchant, "merchant must not be empty")
	}
	if t.Source == "" {
		add(RuleSource, "source tag must not be empty")
	}
	return errs
}

// ValidateRecurring checks the invariants of a recurring-payment record.
func ValidateRecurring(p model.RecurringPayment) []ValidationError {
	var errs []ValidationError
	add := func(rule, format string, args ...any) {
		errs = append(errs, ValidationError{Rule: rule, Ref: p.ID, Description: fmt.Sprintf(format, args...)})
	}

	if p.ID == "" {
		add(RuleID, "id must not be empty")
	}
	if p.ServiceName == "" || p.ServiceName == model.UnknownMerchant {
		add(RuleMerchant, "service name %q is not a known merchant", p.ServiceName)
	}
	if p.Amount <= 0 {
		add(RuleAmount, "amount must be positive, got %d", p.Amount)
	}
	switch p.Cadence {
	case model.CadenceWeekly, model.CadenceMonthly, model.CadenceQuarterly, model.CadenceYearly:
	default:
		add(RuleCadence, "unknown cadence %q", p.Cadence)
	}
	if p.Confidence <= 0.6 || p.Confidence > 1 {
		add(RuleConfidence, "confidence %v outside (0.6,1]", p.Confidence)
	}
	if p.ObservationCount < 2 {
		add(RuleObserved, "needs at least 2 observations, got %d", p.ObservationCount)
	}
	if !validDay(p.FirstObserved) || !validDay(p.LastObserved) || !validDay(p.PredictedNext) {
		add(RuleDate, "observation dates must be valid calendar dates")
	} else if p.FirstObserved.After(p.LastObserved) || !p.PredictedNext.After(p.LastObserved) {
		add(RuleDate, "dates out of order: first %s, last %s, next %s",
			p.FirstObserved.Format(dateFormat), p.LastObserved.Format(dateFormat), p.PredictedNext.Format(dateFormat))
	}
	return errs
}

func validDay(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	_, ok := model.ValidDate(t.Year(), int(t.Month()), t.Day())
	return ok
}

// joinErrors flattens validation errors into one error, or nil.
func joinErrors(verrs []ValidationError) error {
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, len(verrs))
	for i, ve := range verrs {
		errs[i] = ve
	}
	return errors.Join(errs...)
}
