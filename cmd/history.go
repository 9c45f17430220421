package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghyeongl/vaultsync/settings"
	vsync "github.com/ghyeongl/vaultsync/sync"
)

var errHistoryDisabled = errors.New("run history is disabled (history_db is empty)")

func init() {
	rootCmd.AddCommand(newHistoryCmd())
}

func newHistoryCmd() *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List past sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			cmd.SilenceUsage = true

			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")

	historyCmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show the actions of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			cmd.SilenceUsage = true

			rep, err := store.GetRun(args[0])
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), rep)
			return nil
		},
	})

	var keep int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the most recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return errors.New("--keep must not be negative")
			}
			store, err := historyStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			cmd.SilenceUsage = true

			n, err := store.PruneRuns(keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s), kept the newest %d.\n", n, keep)
			return nil
		},
	}
	pruneCmd.Flags().IntVar(&keep, "keep", 100, "number of runs to keep")
	historyCmd.AddCommand(pruneCmd)

	return historyCmd
}

// historyStore opens the history database without touching the vault.
func historyStore(s *settings.Settings) (*vsync.Store, error) {
	store, err := openStore(s)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errHistoryDisabled
	}
	return store, nil
}
