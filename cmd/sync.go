package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	vsync "github.com/ghyeongl/vaultsync/sync"
)

func init() {
	rootCmd.AddCommand(newRunCmd(vsync.DirectionUpload, "Make the remote mirror match the local vault"))
	rootCmd.AddCommand(newRunCmd(vsync.DirectionDownload, "Make the local vault match the remote mirror"))
}

func newRunCmd(dir vsync.Direction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(dir),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			cmd.SilenceUsage = true
			return runOnce(cmd.Context(), cmd.OutOrStdout(), a.syncer, a.bus, dir)
		},
	}
}

// runOnce performs one run while printing every notice, then the summary.
func runOnce(ctx context.Context, w io.Writer, s *vsync.Syncer, bus *vsync.EventBus, dir vsync.Direction) error {
	ch := bus.SubscribeLossless()
	printed := make(chan struct{})
	go printNotices(w, ch, printed)

	rep, err := s.Run(ctx, dir)
	bus.Unsubscribe(ch)
	<-printed

	printSummary(w, rep)
	if err != nil {
		return err
	}
	if rep != nil && rep.Failed() > 0 {
		return errRunFailed
	}
	return nil
}
