// Package history persists parsed transactions and recurring-payment records
// as CSV files inside a mailtx repository.
package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cleared-dev/mailtx/internal/model"
)

// Paths relative to the repository root.
const (
	TransactionsFile = "data/transactions.csv"
	RecurringFile    = "data/recurring.csv"
)

// Store reads and writes the history files of one repository.
type Store struct {
	repoRoot string
}

// NewStore creates a Store rooted at repoRoot.
func NewStore(repoRoot string) *Store {
	return &Store{repoRoot: repoRoot}
}

// txnKey identifies a transaction for de-duplication across syncs.
type txnKey struct {
	mailID string
	source string
	date   string
	amount int64
}

func keyOf(t model.ParsedTransaction) txnKey {
	return txnKey{t.MailID, t.Source, t.Date.Format(dateFormat), t.Amount}
}

// AppendTransactions validates txns and appends the ones not already stored.
// Nothing is written if any transaction is invalid. Returns how many rows
// were appended.
func (s *Store) AppendTransactions(txns []model.ParsedTransaction) (int, error) {
	var verrs []ValidationError
	for _, t := range txns {
		verrs = append(verrs, ValidateTransaction(t)...)
	}
	if err := joinErrors(verrs); err != nil {
		return 0, fmt.Errorf("validation failed: %w", err)
	}

	existing, err := s.ReadTransactions()
	if err != nil {
		return 0, err
	}
	seen := make(map[txnKey]bool, len(existing))
	for _, t := range existing {
		seen[keyOf(t)] = true
	}

	var fresh []model.ParsedTransaction
	for _, t := range txns {
		k := keyOf(t)
		if seen[k] {
			continue
		}
		seen[k] = true
		fresh = append(fresh, t)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	path := s.path(TransactionsFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating data dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening transactions: %w", err)
	}
	defer f.Close()

	if isNew {
		if _, err := fmt.Fprintln(f, TransactionHeader); err != nil {
			return 0, fmt.Errorf("writing header: %w", err)
		}
	}
	if err := AppendTransactions(f, fresh); err != nil {
		return 0, fmt.Errorf("appending transactions: %w", err)
	}
	return len(fresh), nil
}

// ReadTransactions reads the full transaction history. A missing file is an
// empty history.
func (s *Store) ReadTransactions() ([]model.ParsedTransaction, error) {
	path := s.path(TransactionsFile)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening transactions %s: %w", path, err)
	}
	defer f.Close()

	txns, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("reading transactions %s: %w", path, err)
	}
	return txns, nil
}

// ReadRecurring reads the stored recurring-payment records.
func (s *Store) ReadRecurring() ([]model.RecurringPayment, error) {
	path := s.path(RecurringFile)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening recurring %s: %w", path, err)
	}
	defer f.Close()

	recs, err := ReadRecurring(f)
	if err != nil {
		return nil, fmt.Errorf("reading recurring %s: %w", path, err)
	}
	return recs, nil
}

// WriteRecurring validates recs and replaces the recurring file with them.
// The file is swapped in by rename so readers never see a partial write.
func (s *Store) WriteRecurring(recs []model.RecurringPayment) error {
	var verrs []ValidationError
	for _, p := range recs {
		verrs = append(verrs, ValidateRecurring(p)...)
	}
	if err := joinErrors(verrs); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	path := s.path(RecurringFile)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".recurring-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := WriteRecurring(tmp, recs); err != nil {
		tmp.Close()
		return fmt.Errorf("writing recurring: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing recurring: %w", err)
	}
	return nil
}

func (s *Store) path(rel string) string {
	return filepath.Join(s.repoRoot, filepath.FromSlash(rel))
}
