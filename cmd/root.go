// Package cmd is the vaultsync command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ghyeongl/vaultsync/settings"
	vsync "github.com/ghyeongl/vaultsync/sync"
)

// errRunFailed marks a run that finished with failed actions. Details have
// already been printed.
var errRunFailed = errors.New("sync finished with failures")

var (
	configFile string
	verbose    bool
	cfg        *settings.Settings
)

var rootCmd = &cobra.Command{
	Use:   "vaultsync",
	Short: "Mirror a notes vault to an SFTP server",
	Long: `vaultsync mirrors a local vault to an SFTP server. "upload" makes the
remote side match the vault, "download" makes the vault match the remote side.`,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(viper.New(), configFile, cmd.Flags())
		if err != nil {
			return err
		}
		vsync.InitLogger(s.LogDir, verbose)
		cfg = s
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.SortFlags = false
	pf.StringVarP(&configFile, "config", "c", "", "config file (default ~/.vaultsync/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	settings.RegisterFlags(pf)
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, red("Error:"), err)
		}
		stop()
		os.Exit(1)
	}
}
