package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect stored leads",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("leads"); err != nil {
			return err
		}
		ctx := cmd.Context()

		raw, _ := cmd.Flags().GetString("status")
		status, ok := model.ParseStatus(raw)
		if !ok {
			return eris.Errorf("leads list: invalid status %q (want %q or %q)", raw, model.StatusVerified, model.StatusToCheck)
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(ctx, store.LeadFilter{Status: status})
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeadsList(cmd.OutOrStdout(), leads)
		return nil
	},
}

func init() {
	leadsListCmd.Flags().String("status", "", `filter by status ("Verified" or "To Check")`)
	leadsCmd.AddCommand(leadsListCmd)
	rootCmd.AddCommand(leadsCmd)
}

// formatLeadsList writes leads as an aligned table.
func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCOUNTRY\tPROB\tSTATUS\tSYNCED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t----\t------\t------\t-------")

	for _, l := range leads {
		created := "-"
		if !l.CreatedAt.IsZero() {
			created = l.CreatedAt.Format("2006-01-02 15:04")
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%t\t%s\n",
			truncateID(l.ID),
			truncateName(l.Name, 30),
			l.Country,
			l.Probability,
			l.Status,
			l.Synced,
			created,
		)
	}
	_ = w.Flush()
}

// truncateID shortens an ID for table display.
func truncateID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncateName shortens s to at most limit runes, marking the cut with "...".
func truncateName(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
