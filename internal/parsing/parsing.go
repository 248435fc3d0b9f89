// Package parsing turns a batch of raw notification mails into validated
// transactions: normalize, try the vendor matchers in order, optionally fall
// back to the fuzzy extractor, then flag likely subscriptions across the batch.
package parsing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/mailtx/internal/config"
	"github.com/cleared-dev/mailtx/internal/fuzzy"
	"github.com/cleared-dev/mailtx/internal/history"
	"github.com/cleared-dev/mailtx/internal/matcher"
	"github.com/cleared-dev/mailtx/internal/metrics"
	"github.com/cleared-dev/mailtx/internal/model"
	"github.com/cleared-dev/mailtx/internal/normalize"
	"github.com/cleared-dev/mailtx/internal/recurrence"
)

// Reasons attached to mails that yield nothing beyond the matcher reasons.
const (
	ReasonNoBody    = "no_body"
	ReasonNoMatcher = "no_matcher"
	ReasonNoDate    = "no_date"
	ReasonBadDate   = "bad_date"
	ReasonInvalid   = "invalid"
	ReasonPanic     = "panic"
)

// Orchestrator runs the extraction pipeline. It holds no per-run state and is
// safe for concurrent use.
type Orchestrator struct {
	cfg      config.ParserConfig
	dict     *normalize.Dictionary
	matchers []matcher.Matcher
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMatchers replaces the built-in matcher list. Order is priority.
func WithMatchers(ms ...matcher.Matcher) Option {
	return func(o *Orchestrator) { o.matchers = ms }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithMetrics records mail outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator. A nil dictionary leaves merchants as extracted.
func New(cfg config.ParserConfig, dict *normalize.Dictionary, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		dict:     dict,
		matchers: matcher.Default(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.Workers < 1 {
		o.cfg.Workers = 1
	}
	return o
}

// Outcome is what happened to one mail.
type Outcome struct {
	MailID string
	Kind   string // one of the metrics.Outcome* values
	Source string // matcher name or "fuzzy" when one claimed the mail
	Reason string

	txn model.ParsedTransaction
}

// Report is the result of a run.
type Report struct {
	Transactions []model.ParsedTransaction
	Outcomes     []Outcome // one per input mail, in input order
}

// Counts tallies outcomes by kind.
func (r Report) Counts() map[string]int {
	c := make(map[string]int)
	for _, o := range r.Outcomes {
		c[o.Kind]++
	}
	return c
}

// Summary renders the outcome counts as "kind=n" pairs in a fixed order.
func (r Report) Summary() string {
	c := r.Counts()
	var parts []string
	for _, k := range []string{
		metrics.OutcomeParsed, metrics.OutcomeSuppressed, metrics.OutcomeUnmatched,
		metrics.OutcomeEmpty, metrics.OutcomeInvalid, metrics.OutcomePanic,
	} {
		if c[k] > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, c[k]))
		}
	}
	return strings.Join(parts, ", ")
}

// Run extracts transactions from mails. Output order follows input order
// regardless of scheduling. Unusable mails are skipped, never reported as
// errors; the only error is ctx being cancelled.
func (o *Orchestrator) Run(ctx context.Context, mails []model.RawMail) ([]model.ParsedTransaction, error) {
	rep, err := o.RunReport(ctx, mails)
	if err != nil {
		return nil, err
	}
	return rep.Transactions, nil
}

// RunReport is Run with the per-mail outcomes.
func (o *Orchestrator) RunReport(ctx context.Context, mails []model.RawMail) (Report, error) {
	start := time.Now()
	outcomes := make([]Outcome, len(mails))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i := range mails {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = o.Parse(mails[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("parsing mails: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("parsing mails: %w", err)
	}

	var txns []model.ParsedTransaction
	for _, out := range outcomes {
		o.metrics.Mail(out.Kind)
		if out.Kind == metrics.OutcomeParsed {
			txns = append(txns, out.txn)
		}
	}
	txns = recurrence.FlagBatch(txns)
	for _, t := range txns {
		o.metrics.Transaction(t.Source)
	}

	rep := Report{Transactions: txns, Outcomes: outcomes}
	o.metrics.ObserveRun(time.Since(start).Seconds())
	o.log.Info().
		Int("mails", len(mails)).
		Int("transactions", len(txns)).
		Str("outcomes", rep.Summary()).
		Dur("elapsed", time.Since(start)).
		Msg("parse run complete")
	return rep, nil
}

// Parse runs the pipeline on a single mail. A panic inside a matcher is
// recovered and reported as OutcomePanic.
func (o *Orchestrator) Parse(m model.RawMail) (out Outcome) {
	out.MailID = m.ID
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{MailID: m.ID, Kind: metrics.OutcomePanic, Source: out.Source, Reason: ReasonPanic}
			o.log.Error().Str("mail", m.ID).Str("source", out.Source).Interface("panic", r).Msg("matcher panicked")
		}
	}()

	out = o.parse(m, &out)
	o.log.Debug().
		Str("mail", m.ID).
		Str("outcome", out.Kind).
		Str("source", out.Source).
		Str("reason", out.Reason).
		Msg("mail processed")
	return out
}

// parse records the current matcher in cur so a recovered panic can name it.
func (o *Orchestrator) parse(m model.RawMail, cur *Outcome) Outcome {
	body := m.Text
	if strings.TrimSpace(body) == "" {
		body = normalize.HTMLToText(m.HTML)
	}
	body = normalize.Text(body)
	if strings.TrimSpace(body) == "" {
		return Outcome{MailID: m.ID, Kind: metrics.OutcomeEmpty, Reason: ReasonNoBody}
	}

	in := matcher.Input{
		Subject:    normalize.Text(m.Subject),
		Text:       body,
		ReceivedAt: m.ReceivedAt,
	}

	// A rejected candidate does not end the mail: later strategies may still
	// produce a valid one. The first rejection is reported if none does.
	var rejected *Outcome
	accept := func(source string, res matcher.Result) (Outcome, bool) {
		f, ok := res.Fields()
		if !ok {
			return Outcome{}, false
		}
		out := o.finalize(m, source, f)
		if out.Kind == metrics.OutcomeParsed {
			return out, true
		}
		if rejected == nil {
			rejected = &out
		}
		return Outcome{}, false
	}

	for _, mt := range o.matchers {
		cur.Source = mt.Name()
		if !mt.Recognizes(in) {
			continue
		}
		res := mt.Extract(in)
		if res.IsSuppressed() {
			return Outcome{MailID: m.ID, Kind: metrics.OutcomeSuppressed, Source: mt.Name(), Reason: res.Reason()}
		}
		if out, ok := accept(mt.Name(), res); ok {
			return out
		}
	}

	if o.cfg.AllowFuzzy {
		cur.Source = fuzzy.Name
		if out, ok := accept(fuzzy.Name, fuzzy.Extract(in)); ok {
			return out
		}
	}
	if rejected != nil {
		return *rejected
	}
	return Outcome{MailID: m.ID, Kind: metrics.OutcomeUnmatched, Reason: ReasonNoMatcher}
}

// finalize applies the date policy and the merchant dictionary, then
// validates the candidate. The received-date fallback covers a missing date
// only, never an unreadable one.
func (o *Orchestrator) finalize(m model.RawMail, source string, f matcher.Fields) Outcome {
	if f.DateInvalid {
		return Outcome{MailID: m.ID, Kind: metrics.OutcomeInvalid, Source: source, Reason: ReasonBadDate}
	}
	date := f.Date
	if date.IsZero() {
		if o.cfg.DateFallback != config.DateFallbackReceived || m.ReceivedAt.IsZero() {
			return Outcome{MailID: m.ID, Kind: metrics.OutcomeInvalid, Source: source, Reason: ReasonNoDate}
		}
		date = model.DateOf(m.ReceivedAt)
	}

	raw := strings.TrimSpace(f.Merchant)
	merchant := o.dict.Merchant(raw)
	if merchant == "" {
		merchant = model.UnknownMerchant
	}

	txn := model.ParsedTransaction{
		Source:             source,
		MailID:             m.ID,
		Date:               date,
		Time:               f.Time,
		Amount:             f.Amount,
		Merchant:           merchant,
		RawMerchant:        raw,
		IsOverseas:         f.IsOverseas,
		Confidence:         f.Confidence,
		PrelimSubscription: f.PrelimSubscription,
	}
	if verrs := history.ValidateTransaction(txn); len(verrs) > 0 {
		o.log.Warn().Str("mail", m.ID).Str("source", source).Str("error", verrs[0].Error()).Msg("discarding invalid candidate")
		return Outcome{MailID: m.ID, Kind: metrics.OutcomeInvalid, Source: source, Reason: ReasonInvalid}
	}
	return Outcome{MailID: m.ID, Kind: metrics.OutcomeParsed, Source: source, txn: txn}
}
