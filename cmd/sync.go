package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadsync/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync pending Verified leads once, directly against the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("sync"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		notifier, closeNotifier, err := initNotifier(cfg)
		if err != nil {
			return err
		}
		defer closeNotifier() //nolint:errcheck

		n, err := syncer.New(st, notifier).Run(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Successfully synced %d verified leads\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
