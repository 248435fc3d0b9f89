package model

import "time"

// Cadence is the inferred billing period of a recurring charge.
type Cadence string

const (
	CadenceWeekly    Cadence = "weekly"
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceYearly    Cadence = "yearly"
)

// RecurringPayment is a subscription-like charge inferred from transaction history.
// Records are recomputed from scratch on every classification run.
type RecurringPayment struct {
	ID               string    `json:"id"` // stable for a (ServiceName, Amount) pair
	ServiceName      string    `json:"serviceName"`
	Amount           int64     `json:"amount"`
	Cadence          Cadence   `json:"cadence"`
	ObservationCount int       `json:"observationCount"`
	FirstObserved    time.Time `json:"firstObserved"`
	LastObserved     time.Time `json:"lastObserved"`
	PredictedNext    time.Time `json:"predictedNext"`
	Confidence       float64   `json:"confidence"`
}
