package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadsync/internal/model"
)

var enrichDryRun bool

var enrichCmd = &cobra.Command{
	Use:   "enrich <name>...",
	Short: "Enrich names and store them as leads",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("enrich"); err != nil {
			return err
		}
		ctx := cmd.Context()

		results, err := newProcessor(cfg).Process(ctx, args)
		if err != nil {
			return eris.Wrap(err, "enrich")
		}

		leads := make([]model.Lead, 0, len(results))
		if enrichDryRun {
			for _, r := range results {
				n := r.NewLead()
				leads = append(leads, model.Lead{Name: n.Name, Country: n.Country, Probability: n.Probability, Status: n.Status})
			}
			formatLeadsList(cmd.OutOrStdout(), leads)
			return nil
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		for _, r := range results {
			lead, err := st.CreateLead(ctx, r.NewLead())
			if err != nil {
				return eris.Wrapf(err, "enrich: store %q", r.Name)
			}
			leads = append(leads, *lead)
		}

		formatLeadsList(cmd.OutOrStdout(), leads)
		return nil
	},
}

func init() {
	enrichCmd.Flags().BoolVar(&enrichDryRun, "dry-run", false, "print results without storing them")
	rootCmd.AddCommand(enrichCmd)
}
