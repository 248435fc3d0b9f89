package parsing

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/mailtx/internal/config"
	"github.com/cleared-dev/mailtx/internal/importer"
	"github.com/cleared-dev/mailtx/internal/logger"
	"github.com/cleared-dev/mailtx/internal/matcher"
	"github.com/cleared-dev/mailtx/internal/metrics"
	"github.com/cleared-dev/mailtx/internal/model"
	"github.com/cleared-dev/mailtx/internal/normalize"
)

func sampleMails(t *testing.T) []model.RawMail {
	t.Helper()
	f, err := os.Open("../../testdata/mails/sample.jsonl")
	require.NoError(t, err)
	defer f.Close()
	mails, err := importer.JSONLReader{}.Read(f)
	require.NoError(t, err)
	return mails
}

func newOrchestrator(fuzzy bool, opts ...Option) *Orchestrator {
	cfg := config.Default().Parser
	cfg.AllowFuzzy = fuzzy
	return New(cfg, normalize.NewDictionary(normalize.DefaultDictionary()), opts...)
}

func rakutenMail(id, body string, received time.Time) model.RawMail {
	return model.RawMail{ID: id, Subject: "カード利用のお知らせ", Text: "楽天カード\n" + body, ReceivedAt: received}
}

func TestRun_SampleBatch(t *testing.T) {
	txns, err := newOrchestrator(false).Run(context.Background(), sampleMails(t))
	require.NoError(t, err)
	require.Len(t, txns, 3)

	netflix := txns[0]
	assert.Equal(t, "rakuten_card", netflix.Source)
	assert.Equal(t, "rk-0501-1", netflix.MailID)
	assert.Equal(t, "Netflix", netflix.Merchant)
	assert.Equal(t, "NETFLIX.COM", netflix.RawMerchant)
	assert.Equal(t, int64(1490), netflix.Amount)
	assert.Equal(t, model.Day(2024, 5, 1), netflix.Date)
	assert.InDelta(t, 0.95, netflix.Confidence, 1e-9)

	seven := txns[1]
	assert.Equal(t, "smbc_card", seven.Source)
	assert.Equal(t, "セブン-イレブン", seven.Merchant)
	assert.Equal(t, "08:15", seven.Time)
	assert.Equal(t, int64(398), seven.Amount)

	amazon := txns[2]
	assert.Equal(t, "amazon_order", amazon.Source)
	assert.Equal(t, "Amazon", amazon.Merchant)
	assert.Equal(t, int64(3280), amazon.Amount)
	assert.Equal(t, model.Day(2024, 5, 3), amazon.Date)
}

func TestRunReport_Outcomes(t *testing.T) {
	rep, err := newOrchestrator(true).RunReport(context.Background(), sampleMails(t))
	require.NoError(t, err)
	require.Len(t, rep.Outcomes, 7)

	kinds := make([]string, len(rep.Outcomes))
	for i, o := range rep.Outcomes {
		kinds[i] = o.Kind
	}
	assert.Equal(t, []string{
		metrics.OutcomeParsed,
		metrics.OutcomeSuppressed,
		metrics.OutcomeParsed,
		metrics.OutcomeParsed,
		metrics.OutcomeParsed,
		metrics.OutcomeParsed,
		metrics.OutcomeEmpty,
	}, kinds)
	assert.Equal(t, "rakuten_card", rep.Outcomes[1].Source)
	assert.Equal(t, matcher.ReasonFlash, rep.Outcomes[1].Reason)
	assert.Equal(t, "parsed=5, suppressed=1, empty=1", rep.Summary())

	require.Len(t, rep.Transactions, 5)
	shop := rep.Transactions[4]
	assert.Equal(t, model.SourceFuzzy, shop.Source)
	assert.Equal(t, "サンプル書店", shop.Merchant)
	assert.Equal(t, int64(2420), shop.Amount)
	assert.Equal(t, model.Day(2024, 5, 4), shop.Date)
}

func TestRun_EmptyMail(t *testing.T) {
	o := newOrchestrator(true)
	for _, m := range []model.RawMail{
		{ID: "a"},
		{ID: "b", Subject: "¥1,000 支払い", Text: " \n\t"},
		{ID: "c", HTML: "<html><head><style>p{}</style></head><body> </body></html>"},
	} {
		txns, err := o.Run(context.Background(), []model.RawMail{m})
		require.NoError(t, err)
		assert.Empty(t, txns, m.ID)
	}
}

func TestRun_EmptyBatch(t *testing.T) {
	txns, err := newOrchestrator(true).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestRun_FlashNeverFallsBackToFuzzy(t *testing.T) {
	m := model.RawMail{
		ID:      "flash",
		Subject: "【速報版】カード利用のお知らせ",
		Text:    "楽天カード\n■利用日: 2024/05/01\n■利用金額: 3,000 円\n",
	}
	out := newOrchestrator(true).Parse(m)
	assert.Equal(t, metrics.OutcomeSuppressed, out.Kind)
}

func TestRun_Deterministic(t *testing.T) {
	mails := sampleMails(t)
	for i := range 40 {
		mails = append(mails, rakutenMail(
			fmt.Sprintf("gen-%02d", i),
			"■利用日: 2024/04/"+twoDigits(1+i%28)+"\n■利用先: SPOTIFY\n■利用金額: "+itoa(980+i)+" 円\n",
			time.Time{},
		))
	}

	serial := newOrchestrator(true)
	serial.cfg.Workers = 1
	parallel := newOrchestrator(true)
	parallel.cfg.Workers = 16

	want, err := serial.Run(context.Background(), mails)
	require.NoError(t, err)
	for range 5 {
		got, err := parallel.Run(context.Background(), mails)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRun_TemplateConfidenceAboveFuzzy(t *testing.T) {
	txns, err := newOrchestrator(true).Run(context.Background(), sampleMails(t))
	require.NoError(t, err)

	minTemplate, maxFuzzy := 1.0, 0.0
	for _, tx := range txns {
		if tx.Source == model.SourceFuzzy {
			maxFuzzy = max(maxFuzzy, tx.Confidence)
		} else {
			minTemplate = min(minTemplate, tx.Confidence)
		}
	}
	assert.GreaterOrEqual(t, minTemplate, maxFuzzy)
}

func TestRun_DateFallback(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	received := time.Date(2024, 5, 1, 23, 30, 0, 0, jst)
	dateless := rakutenMail("m1", "■利用先: NETFLIX.COM\n■利用金額: 1,490 円\n", received)

	out := newOrchestrator(false).Parse(dateless)
	require.Equal(t, metrics.OutcomeParsed, out.Kind)
	assert.Equal(t, model.Day(2024, 5, 1), out.txn.Date, "calendar date of arrival in the sender's zone")

	noReceived := dateless
	noReceived.ReceivedAt = time.Time{}
	out = newOrchestrator(false).Parse(noReceived)
	assert.Equal(t, metrics.OutcomeInvalid, out.Kind)
	assert.Equal(t, ReasonNoDate, out.Reason)

	strict := newOrchestrator(false)
	strict.cfg.DateFallback = config.DateFallbackNone
	out = strict.Parse(dateless)
	assert.Equal(t, metrics.OutcomeInvalid, out.Kind)
}

func TestRun_ImpossibleDateNotReplacedByReceived(t *testing.T) {
	received := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	m := rakutenMail("m1", "■利用日: 2024/02/30\n■利用先: NETFLIX.COM\n■利用金額: 1,490 円\n", received)

	for _, allowFuzzy := range []bool{false, true} {
		rep, err := newOrchestrator(allowFuzzy).RunReport(context.Background(), []model.RawMail{m})
		require.NoError(t, err)
		assert.Empty(t, rep.Transactions, "fuzzy=%v", allowFuzzy)
		require.Len(t, rep.Outcomes, 1)
		assert.Equal(t, metrics.OutcomeInvalid, rep.Outcomes[0].Kind, "fuzzy=%v", allowFuzzy)
		assert.Equal(t, ReasonBadDate, rep.Outcomes[0].Reason, "fuzzy=%v", allowFuzzy)
		assert.Equal(t, "rakuten_card", rep.Outcomes[0].Source, "fuzzy=%v", allowFuzzy)
	}
}

func TestRun_RejectedCandidateFallsThrough(t *testing.T) {
	// The date sits outside the labeled lines, so only the fuzzy extractor sees it.
	m := rakutenMail("m1", "2024/05/01 ご利用分\n■利用先: NETFLIX.COM\n■利用金額: 1,490 円\n", time.Time{})

	out := newOrchestrator(false).Parse(m)
	assert.Equal(t, metrics.OutcomeInvalid, out.Kind)
	assert.Equal(t, "rakuten_card", out.Source)

	out = newOrchestrator(true).Parse(m)
	require.Equal(t, metrics.OutcomeParsed, out.Kind)
	assert.Equal(t, model.SourceFuzzy, out.Source)
	assert.Equal(t, model.Day(2024, 5, 1), out.txn.Date)
	assert.Equal(t, int64(1490), out.txn.Amount)
}

func TestRun_FlagsBatchRepeats(t *testing.T) {
	var mails []model.RawMail
	for i, day := range []string{"01", "02", "03"} {
		mails = append(mails, rakutenMail("r"+day, "■利用日: 2024/05/"+day+"\n■利用先: ジム会費\n■利用金額: "+itoa(1980+i)+" 円\n", time.Time{}))
	}
	txns, err := newOrchestrator(false).Run(context.Background(), mails)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	for _, tx := range txns {
		assert.True(t, tx.PrelimSubscription)
	}
}

type panicky struct{}

func (panicky) Name() string                         { return "boom" }
func (panicky) Recognizes(matcher.Input) bool        { return true }
func (panicky) Extract(matcher.Input) matcher.Result { panic("bad regexp state") }

func TestRun_MatcherPanicSkipsMail(t *testing.T) {
	buf := &bytes.Buffer{}
	o := newOrchestrator(true,
		WithMatchers(panicky{}, matcher.RakutenCard()),
		WithLogger(logger.NewWithWriter(buf)),
	)
	mails := sampleMails(t)

	rep, err := o.RunReport(context.Background(), mails[:1])
	require.NoError(t, err)
	assert.Empty(t, rep.Transactions)
	require.Len(t, rep.Outcomes, 1)
	assert.Equal(t, metrics.OutcomePanic, rep.Outcomes[0].Kind)
	assert.Equal(t, "boom", rep.Outcomes[0].Source)
	assert.Contains(t, buf.String(), "matcher panicked")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newOrchestrator(true).Run(ctx, sampleMails(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	_, err := newOrchestrator(false, WithMetrics(m)).Run(context.Background(), sampleMails(t))
	require.NoError(t, err)

	assert.InDelta(t, 3, testutil.ToFloat64(m.MailsTotal.WithLabelValues(metrics.OutcomeParsed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MailsTotal.WithLabelValues(metrics.OutcomeSuppressed)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.MailsTotal.WithLabelValues(metrics.OutcomeUnmatched)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("amazon_order")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func FuzzParse(f *testing.F) {
	f.Add("カード利用のお知らせ", "楽天カード\n■利用日: 2024/05/01\n■利用金額: 1,980 円\n")
	f.Add("ご利用のお知らせ", "2024年2月30日 ¥0\n店名: X")
	f.Add("", "2099/12/31 99999999999999999999円")
	f.Add("Amazon.co.jp ご注文の確認", "Amazon.co.jp\nご請求額: ¥ -5\n注文日: 13/45")
	f.Add("エポスカード ご利用のお知らせ", "ご利用日時:02月29日\nご利用金額:1.5円")

	o := newOrchestrator(true)
	received := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	f.Fuzz(func(t *testing.T, subject, text string) {
		out := o.Parse(model.RawMail{ID: "fuzz", Subject: subject, Text: text, ReceivedAt: received})
		assert.NotEqual(t, metrics.OutcomePanic, out.Kind)
		if out.Kind != metrics.OutcomeParsed {
			return
		}
		tx := out.txn
		assert.Positive(t, tx.Amount)
		_, ok := model.ValidDate(tx.Date.Year(), int(tx.Date.Month()), tx.Date.Day())
		assert.True(t, ok, "date %v", tx.Date)
		assert.NotEmpty(t, tx.Merchant)
		assert.GreaterOrEqual(t, tx.Confidence, 0.0)
		assert.LessOrEqual(t, tx.Confidence, 1.0)
	})
}

func twoDigits(n int) string { return fmt.Sprintf("%02d", n) }

func itoa(n int) string { return strconv.Itoa(n) }
