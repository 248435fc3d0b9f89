package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/mailtx/internal/history"
	"github.com/cleared-dev/mailtx/internal/model"
	"github.com/cleared-dev/mailtx/internal/recurrence"
	"github.com/cleared-dev/mailtx/internal/synclog"
)

func newRecurringCommand() *cobra.Command {
	var dryRun, asJSON bool
	var repoDir string

	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Detect recurring payments in the transaction history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(repoDir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return runRecurring(cmd.OutOrStdout(), p, dryRun, asJSON)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify without writing data/recurring.csv")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	cmd.Flags().StringVar(&repoDir, "repo", ".", "repository directory")

	return cmd
}

func runRecurring(out io.Writer, p *project, dryRun, asJSON bool) error {
	store := history.NewStore(p.root)

	txns, err := store.ReadTransactions()
	if err != nil {
		return err
	}
	existing, err := store.ReadRecurring()
	if err != nil {
		return err
	}

	fresh := recurrence.Classify(txns)
	merged, changes := recurrence.Reconcile(existing, fresh)
	p.log.Info().
		Int("transactions", len(txns)).
		Int("detected", len(fresh)).
		Int("inserted", changes.Inserted).
		Int("refreshed", changes.Refreshed).
		Msg("classified history")

	if !dryRun {
		if err := store.WriteRecurring(merged); err != nil {
			return err
		}
		entry := synclog.Entry{
			Timestamp: time.Now(),
			RunID:     uuid.NewString(),
			Action:    synclog.ActionRecurring,
			Source:    history.TransactionsFile,
			Records:   len(merged),
			Details:   fmt.Sprintf("inserted=%d, refreshed=%d", changes.Inserted, changes.Refreshed),
		}
		if err := synclog.Append(p.root, []synclog.Entry{entry}); err != nil {
			p.log.Warn().Err(err).Msg("writing sync log")
		}
		p.commit(fmt.Sprintf("recurring: %d records (%s)", len(merged), entry.Details))
	}

	if asJSON {
		if merged == nil {
			merged = []model.RecurringPayment{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(merged)
	}
	return printRecurring(out, merged)
}

func printRecurring(out io.Writer, recs []model.RecurringPayment) error {
	if len(recs) == 0 {
		fmt.Fprintln(out, "No recurring payments found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tAMOUNT\tCADENCE\tSEEN\tLAST\tNEXT\tCONFIDENCE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%s\t%.2f\n",
			r.ServiceName, r.Amount, r.Cadence, r.ObservationCount,
			r.LastObserved.Format(time.DateOnly), r.PredictedNext.Format(time.DateOnly), r.Confidence)
	}
	return tw.Flush()
}
