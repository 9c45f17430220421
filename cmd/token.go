package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	vsync "github.com/ghyeongl/vaultsync/sync"
)

func init() {
	rootCmd.AddCommand(newTokenCmd())
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the daemon control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.ControlToken == "" {
				return errors.New("control_token is not set")
			}
			tok, err := vsync.IssueControlToken(cfg.ControlToken, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 never expires)")
	return tokenCmd
}
