package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/mailtx/internal/history"
	"github.com/cleared-dev/mailtx/internal/importer"
	"github.com/cleared-dev/mailtx/internal/logger"
	"github.com/cleared-dev/mailtx/internal/model"
	"github.com/cleared-dev/mailtx/internal/parsing"
	"github.com/cleared-dev/mailtx/internal/prefilter"
	"github.com/cleared-dev/mailtx/internal/synclog"
)

type parseOptions struct {
	dryRun   bool
	asJSON   bool
	fuzzy    bool
	fuzzySet bool
}

func newParseCommand() *cobra.Command {
	var opts parseOptions
	var repoDir string

	cmd := &cobra.Command{
		Use:   "parse [batch...]",
		Short: "Extract transactions from mail batches",
		Long: "Extract transactions from mail batches and append them to data/transactions.csv.\n" +
			"Without arguments every .json/.jsonl batch in import/ is processed and then moved\n" +
			"to import/processed/. Batches named on the command line are left in place.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(repoDir, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts.fuzzySet = cmd.Flags().Changed("fuzzy")
			return runParse(cmd.Context(), cmd.OutOrStdout(), p, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "parse without writing history or moving batches")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print extracted transactions as JSON")
	cmd.Flags().BoolVar(&opts.fuzzy, "fuzzy", false, "fall back to the fuzzy extractor (overrides parser.allow_fuzzy)")
	cmd.Flags().StringVar(&repoDir, "repo", ".", "repository directory")

	return cmd
}

type batch struct {
	importer.FileInfo
	external bool // named on the command line rather than found in import/
}

func runParse(ctx context.Context, out io.Writer, p *project, paths []string, opts parseOptions) error {
	reg := importer.DefaultRegistry()

	var batches []batch
	if len(paths) > 0 {
		for _, path := range paths {
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			batches = append(batches, batch{
				FileInfo: importer.FileInfo{Name: filepath.Base(abs), Path: abs},
				external: true,
			})
		}
	} else {
		files, err := reg.Scan(p.root)
		if err != nil {
			return err
		}
		for _, f := range files {
			batches = append(batches, batch{FileInfo: f})
		}
	}
	if len(batches) == 0 {
		fmt.Fprintln(out, "No batches to import.")
		return nil
	}

	parserCfg := p.cfg.Parser
	if opts.fuzzySet {
		parserCfg.AllowFuzzy = opts.fuzzy
	}
	orch := parsing.New(parserCfg, p.dict, parsing.WithLogger(p.log))
	filter := prefilter.New(p.cfg.Filter)
	store := history.NewStore(p.root)
	runID := uuid.NewString()
	log := logger.WithFields(p.log, map[string]any{"run_id": runID})

	var all []model.ParsedTransaction
	var entries []synclog.Entry
	for _, b := range batches {
		mails, err := reg.ReadFile(b.Path)
		if err != nil {
			return err
		}
		kept, dropped := filter.Apply(mails)

		rep, err := orch.RunReport(ctx, kept)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", b.Name, err)
		}
		all = append(all, rep.Transactions...)

		added := 0
		if !opts.dryRun {
			if added, err = store.AppendTransactions(rep.Transactions); err != nil {
				return fmt.Errorf("storing %s: %w", b.Name, err)
			}
			entries = append(entries, synclog.Entry{
				Timestamp: time.Now(),
				RunID:     runID,
				Action:    synclog.ActionParse,
				Source:    b.Name,
				Mails:     len(kept),
				Records:   added,
				Details:   rep.Summary(),
			})
			if !b.external {
				if err := importer.MarkProcessed(p.root, b.Name); err != nil {
					return err
				}
			}
		}

		log.Info().
			Str("batch", b.Name).
			Int("mails", len(mails)).
			Int("filtered", total(dropped)).
			Int("transactions", len(rep.Transactions)).
			Int("appended", added).
			Msg("batch processed")
		if !opts.asJSON {
			fmt.Fprintf(out, "%s: %d mails, %d filtered, %d transactions (%s), %d new\n",
				b.Name, len(mails), total(dropped), len(rep.Transactions), rep.Summary(), added)
		}
	}

	if len(entries) > 0 {
		if err := synclog.Append(p.root, entries); err != nil {
			log.Warn().Err(err).Msg("writing sync log")
		}
		p.commit(commitMessage(entries))
	}

	if opts.asJSON {
		if all == nil {
			all = []model.ParsedTransaction{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}
	return nil
}

func commitMessage(entries []synclog.Entry) string {
	added := 0
	for _, e := range entries {
		added += e.Records
	}
	if len(entries) == 1 {
		return fmt.Sprintf("parse: %s (+%d)", entries[0].Source, added)
	}
	return fmt.Sprintf("parse: %d batches (+%d)", len(entries), added)
}

func total(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
