package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/mailtx/internal/config"
	"github.com/cleared-dev/mailtx/internal/history"
	"github.com/cleared-dev/mailtx/internal/metrics"
	"github.com/cleared-dev/mailtx/internal/model"
	"github.com/cleared-dev/mailtx/internal/normalize"
	"github.com/cleared-dev/mailtx/internal/parsing"
	"github.com/cleared-dev/mailtx/internal/prefilter"
	"github.com/cleared-dev/mailtx/internal/synclog"
)

func newTestServer(t *testing.T, repoRoot string) (*Server, *prometheus.Registry) {
	t.Helper()
	cfg := config.Default()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	opts := Options{
		Orchestrator: parsing.New(cfg.Parser, normalize.NewDictionary(normalize.DefaultDictionary()), parsing.WithMetrics(m)),
		Filter:       prefilter.New(cfg.Filter),
		Gatherer:     reg,
		Metrics:      m,
	}
	if repoRoot != "" {
		opts.Store = history.NewStore(repoRoot)
		opts.RepoRoot = repoRoot
	}
	return New(opts), reg
}

func postJSON(t *testing.T, s *Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func netflixMail() model.RawMail {
	return model.RawMail{
		ID:      "rk-1",
		Subject: "カード利用のお知らせ(本人ご利用分)",
		From:    "info@mail.rakuten-card.co.jp",
		Text:    "楽天カード\n■利用日: 2024/05/01\n■利用先: NETFLIX.COM\n■利用金額: 1,490 円\n",
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, "")
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t, "")

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestHandleParse(t *testing.T) {
	s, _ := newTestServer(t, "")
	campaign := model.RawMail{
		ID:      "ad-1",
		Subject: "ポイント還元キャンペーンのお知らせ",
		Text:    "楽天カード\n■利用金額: 5,000 円\n",
	}
	flash := model.RawMail{
		ID:      "rk-2",
		Subject: "【速報版】カード利用のお知らせ",
		Text:    "楽天カード\n■利用日: 2024/05/01\n■利用金額: 3,000 円\n",
	}

	resp := postJSON(t, s, "/api/parse", ParseRequest{Mails: []model.RawMail{netflixMail(), campaign, flash}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[ParseResponse](t, resp)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, 1, body.Filtered)
	assert.Equal(t, 0, body.Stored)
	assert.Equal(t, "Netflix", body.Transactions[0].Merchant)
	assert.Equal(t, int64(1490), body.Transactions[0].Amount)
	assert.Equal(t, 1, body.Outcomes[metrics.OutcomeParsed])
	assert.Equal(t, 1, body.Outcomes[metrics.OutcomeSuppressed])
}

func TestHandleParse_EmptyBatch(t *testing.T) {
	s, _ := newTestServer(t, "")
	resp := postJSON(t, s, "/api/parse", ParseRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[ParseResponse](t, resp)
	assert.Equal(t, 0, body.Count)
	assert.NotNil(t, body.Transactions)
}

func TestHandleParse_InvalidBody(t *testing.T) {
	s, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/parse", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleParse_StoreWithoutRepo(t *testing.T) {
	s, _ := newTestServer(t, "")
	resp := postJSON(t, s, "/api/parse", ParseRequest{Mails: []model.RawMail{netflixMail()}, Store: true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleParse_Store(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestServer(t, dir)

	req := ParseRequest{Mails: []model.RawMail{netflixMail()}, Store: true}
	body := decode[ParseResponse](t, postJSON(t, s, "/api/parse", req))
	assert.Equal(t, 1, body.Stored)

	// Same batch again is deduplicated.
	body = decode[ParseResponse](t, postJSON(t, s, "/api/parse", req))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, 0, body.Stored)

	stored, err := history.NewStore(dir).ReadTransactions()
	require.NoError(t, err)
	require.Len(t, stored, 1)

	entries, err := synclog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, synclog.ActionParse, entries[0].Action)
	assert.Equal(t, "api", entries[0].Source)
	assert.Equal(t, 1, entries[0].Records)
}

func monthly(merchant string, amount int64, dates ...time.Time) []model.ParsedTransaction {
	out := make([]model.ParsedTransaction, len(dates))
	for i, d := range dates {
		out[i] = model.ParsedTransaction{
			Source:     "rakuten_card",
			MailID:     merchant + d.Format("0102"),
			Date:       d,
			Amount:     amount,
			Merchant:   merchant,
			Confidence: 0.95,
		}
	}
	return out
}

func TestHandleRecurring(t *testing.T) {
	s, reg := newTestServer(t, "")
	txns := monthly("Netflix", 1490, model.Day(2024, 1, 5), model.Day(2024, 2, 5), model.Day(2024, 3, 5))

	resp := postJSON(t, s, "/api/recurring", RecurringRequest{Transactions: txns})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[RecurringResponse](t, resp)
	require.Equal(t, 1, body.Count)
	rec := body.Recurring[0]
	assert.Equal(t, "Netflix", rec.ServiceName)
	assert.Equal(t, model.CadenceMonthly, rec.Cadence)
	assert.Equal(t, 3, rec.ObservationCount)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "mailtx_recurrence_payments" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHandleRecurring_FromHistory(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestServer(t, dir)
	txns := monthly("Netflix", 1490, model.Day(2024, 1, 5), model.Day(2024, 2, 5), model.Day(2024, 3, 5))
	_, err := history.NewStore(dir).AppendTransactions(txns)
	require.NoError(t, err)

	body := decode[RecurringResponse](t, postJSON(t, s, "/api/recurring", RecurringRequest{FromHistory: true}))
	assert.Equal(t, 1, body.Count)
}

func TestHandleRecurring_NoSeries(t *testing.T) {
	s, _ := newTestServer(t, "")
	body := decode[RecurringResponse](t, postJSON(t, s, "/api/recurring", RecurringRequest{}))
	assert.Equal(t, 0, body.Count)
	assert.NotNil(t, body.Recurring)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, "")
	campaign := model.RawMail{ID: "ad-1", Subject: "キャンペーンのお知らせ", Text: "5,000円"}
	postJSON(t, s, "/api/parse", ParseRequest{Mails: []model.RawMail{netflixMail(), campaign}})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `mailtx_parser_transactions_total{source="rakuten_card"} 1`)
	assert.Contains(t, string(data), `mailtx_parser_mails_total{outcome="filtered"} 1`)
	assert.Contains(t, string(data), `mailtx_parser_mails_total{outcome="parsed"} 1`)
}
