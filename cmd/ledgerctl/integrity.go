package main

import (
	"errors"
	"fmt"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/bootstrap"
	"wallet-ledger/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// errIntegrity makes the process exit non-zero when a check finds violations.
var errIntegrity = errors.New("ledger integrity violations found")

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <transfer-id>",
		Short: "Check that a transfer's postings balance to zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transfer id %q: %w", args[0], err)
			}

			return c.withBackend(cmd.Context(), func(_ *config.Config, b *bootstrap.Backend, log zerolog.Logger) error {
				verifier := service.NewVerifierService(b.Store.Repositories().Ledger, log)
				res, err := verifier.Verify(cmd.Context(), id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if c.asJSON {
					if err := printJSON(out, res); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(out, "transfer: %s\nvalid:    %t\nentries:  %d\nsum:      %s\ndetail:   %s\n",
						res.TransferID, res.Valid, res.EntryCount, res.Sum.String(), res.Detail)
				}
				if !res.Valid {
					return errIntegrity
				}
				return nil
			})
		},
	}
}

func (c *cli) reconcileCmd() *cobra.Command {
	var since time.Duration
	var limit int

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Verify every completed transfer in a time window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(_ *config.Config, b *bootstrap.Backend, log zerolog.Logger) error {
				verifier := service.NewVerifierService(b.Store.Repositories().Ledger, log)
				report, err := verifier.Reconcile(cmd.Context(), time.Now().Add(-since), limit)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if c.asJSON {
					if err := printJSON(out, report); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(out, "since:   %s\nchecked: %d\nvalid:   %d\ninvalid: %d\n",
						report.Since.UTC().Format(time.RFC3339), report.Checked, report.Valid, len(report.Invalid))
					for _, inv := range report.Invalid {
						fmt.Fprintf(out, "  %s  %s\n", inv.TransferID, inv.Detail)
					}
				}
				if len(report.Invalid) > 0 {
					return errIntegrity
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "How far back to look")
	cmd.Flags().IntVarP(&limit, "limit", "n", 1000, "Maximum transfers to check")
	return cmd
}

func (c *cli) orphansCmd() *cobra.Command {
	var olderThan time.Duration
	var limit int

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List transfers left pending by an interrupted sequential run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), func(cfg *config.Config, b *bootstrap.Backend, log zerolog.Logger) error {
				age := olderThan
				if !cmd.Flags().Changed("older-than") && cfg.Transfer.OrphanAge > 0 {
					age = cfg.Transfer.OrphanAge
				}

				verifier := service.NewVerifierService(b.Store.Repositories().Ledger, log)
				records, err := verifier.FindOrphans(cmd.Context(), age, limit)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if c.asJSON {
					return printJSON(out, records)
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "no orphaned transfers")
					return nil
				}
				for _, rec := range records {
					fmt.Fprintf(out, "%s  %s -> %s  %s %s  created %s\n",
						rec.ID, rec.SenderID, rec.RecipientID, rec.Amount.StringFixed(2), rec.Currency,
						rec.CreatedAt.UTC().Format(time.RFC3339))
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 5*time.Minute, "Minimum age of a pending transfer")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum transfers to list")
	return cmd
}
