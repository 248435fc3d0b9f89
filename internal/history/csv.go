package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/mailtx/internal/model"
)

// TransactionHeader is the CSV header for data/transactions.csv.
const TransactionHeader = "mail_id,date,time,amount,merchant,raw_merchant,source,is_overseas,confidence,prelim_subscription"

// RecurringHeader is the CSV header for data/recurring.csv.
const RecurringHeader = "id,service_name,amount,cadence,observation_count,first_observed,last_observed,predicted_next,confidence"

const (
	dateFormat = "2006-01-02"

	txnFields     = 10
	colMailID     = 0
	colDate       = 1
	colTime       = 2
	colAmount     = 3
	colMerchant   = 4
	colRawMerch   = 5
	colSource     = 6
	colOverseas   = 7
	colConf       = 8
	colPrelimSubs = 9

	recFields    = 9
	colRecID     = 0
	colService   = 1
	colRecAmount = 2
	colCadence   = 3
	colObsCount  = 4
	colFirst     = 5
	colLast      = 6
	colNext      = 7
	colRecConf   = 8
)

// ReadTransactions reads all transactions from a transactions.csv reader.
func ReadTransactions(r io.Reader) ([]model.ParsedTransaction, error) {
	records, err := readAll(r, txnFields)
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	var txns []model.ParsedTransaction
	for i, rec := range records {
		t, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// WriteTransactions writes transactions to a writer (including header).
func WriteTransactions(w io.Writer, txns []model.ParsedTransaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(TransactionHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txns {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AppendTransactions appends transactions to an existing transactions.csv
// writer (no header).
func AppendTransactions(w io.Writer, txns []model.ParsedTransaction) error {
	cw := csv.NewWriter(w)
	for i, t := range txns {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a transaction to a CSV row.
func MarshalTransaction(t model.ParsedTransaction) []string {
	row := make([]string, txnFields)
	row[colMailID] = t.MailID
	row[colDate] = t.Date.Format(dateFormat)
	row[colTime] = t.Time
	row[colAmount] = strconv.FormatInt(t.Amount, 10)
	row[colMerchant] = t.Merchant
	row[colRawMerch] = t.RawMerchant
	row[colSource] = t.Source
	row[colOverseas] = strconv.FormatBool(t.IsOverseas)
	row[colConf] = formatConfidence(t.Confidence)
	row[colPrelimSubs] = strconv.FormatBool(t.PrelimSubscription)
	return row
}

// UnmarshalTransaction converts a CSV row to a transaction.
func UnmarshalTransaction(record []string) (model.ParsedTransaction, error) {
	if len(record) != txnFields {
		return model.ParsedTransaction{}, fmt.Errorf("expected %d fields, got %d", txnFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.ParsedTransaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}
	amount, err := strconv.ParseInt(record[colAmount], 10, 64)
	if err != nil {
		return model.ParsedTransaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}
	overseas, err := parseBool(record[colOverseas])
	if err != nil {
		return model.ParsedTransaction{}, fmt.Errorf("parsing is_overseas %q: %w", record[colOverseas], err)
	}
	conf, err := parseConfidence(record[colConf])
	if err != nil {
		return model.ParsedTransaction{}, err
	}
	prelim, err := parseBool(record[colPrelimSubs])
	if err != nil {
		return model.ParsedTransaction{}, fmt.Errorf("parsing prelim_subscription %q: %w", record[colPrelimSubs], err)
	}

	return model.ParsedTransaction{
		Source:             record[colSource],
		MailID:             record[colMailID],
		Date:               date,
		Time:               record[colTime],
		Amount:             amount,
		Merchant:           record[colMerchant],
		RawMerchant:        record[colRawMerch],
		IsOverseas:         overseas,
		Confidence:         conf,
		PrelimSubscription: prelim,
	}, nil
}

// ReadRecurring reads all records from a recurring.csv reader.
func ReadRecurring(r io.Reader) ([]model.RecurringPayment, error) {
	records, err := readAll(r, recFields)
	if err != nil {
		return nil, fmt.Errorf("reading recurring CSV: %w", err)
	}

	var recs []model.RecurringPayment
	for i, rec := range records {
		p, err := UnmarshalRecurring(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		recs = append(recs, p)
	}
	return recs, nil
}

// WriteRecurring writes records to a writer (including header).
func WriteRecurring(w io.Writer, recs []model.RecurringPayment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(RecurringHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, p := range recs {
		if err := cw.Write(MarshalRecurring(p)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalRecurring converts a record to a CSV row.
func MarshalRecurring(p model.RecurringPayment) []string {
	row := make([]string, recFields)
	row[colRecID] = p.ID
	row[colService] = p.ServiceName
	row[colRecAmount] = strconv.FormatInt(p.Amount, 10)
	row[colCadence] = string(p.Cadence)
	row[colObsCount] = strconv.Itoa(p.ObservationCount)
	row[colFirst] = p.FirstObserved.Format(dateFormat)
	row[colLast] = p.LastObserved.Format(dateFormat)
	row[colNext] = p.PredictedNext.Format(dateFormat)
	row[colRecConf] = formatConfidence(p.Confidence)
	return row
}

// UnmarshalRecurring converts a CSV row to a record.
func UnmarshalRecurring(record []string) (model.RecurringPayment, error) {
	if len(record) != recFields {
		return model.RecurringPayment{}, fmt.Errorf("expected %d fields, got %d", recFields, len(record))
	}

	amount, err := strconv.ParseInt(record[colRecAmount], 10, 64)
	if err != nil {
		return model.RecurringPayment{}, fmt.Errorf("parsing amount %q: %w", record[colRecAmount], err)
	}
	count, err := strconv.Atoi(record[colObsCount])
	if err != nil {
		return model.RecurringPayment{}, fmt.Errorf("parsing observation_count %q: %w", record[colObsCount], err)
	}

	var dates [3]time.Time
	for i, col := range []int{colFirst, colLast, colNext} {
		if dates[i], err = time.Parse(dateFormat, record[col]); err != nil {
			return model.RecurringPayment{}, fmt.Errorf("parsing date %q: %w", record[col], err)
		}
	}

	conf, err := parseConfidence(record[colRecConf])
	if err != nil {
		return model.RecurringPayment{}, err
	}

	return model.RecurringPayment{
		ID:               record[colRecID],
		ServiceName:      record[colService],
		Amount:           amount,
		Cadence:          model.Cadence(record[colCadence]),
		ObservationCount: count,
		FirstObserved:    dates[0],
		LastObserved:     dates[1],
		PredictedNext:    dates[2],
		Confidence:       conf,
	}, nil
}

// readAll returns the data rows of a CSV file, skipping the header.
func readAll(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

// formatConfidence renders a confidence with at most 4 decimals and no
// trailing zeros, e.g. 0.95 or 0.8.
func formatConfidence(c float64) string {
	return decimal.NewFromFloat(c).Round(4).String()
}

func parseConfidence(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing confidence %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
