// Package cli is the tokpost command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/observability"
)

// Version is set at build time with
// -ldflags "-X github.com/ibeckermayer/tokpost/internal/cli.Version=1.2.3".
var Version = "dev"

// ErrVideosFailed means the command ran but at least one video was not
// published.
var ErrVideosFailed = errors.New("some videos failed to upload")

// state is what the persistent pre-run hands to subcommands.
type state struct {
	configPath string
	cfg        *config.Config
}

func (s *state) logger() *zap.Logger {
	return observability.GetLogger()
}

// Execute runs the root command with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	s := &state{}

	root := &cobra.Command{
		Use:           "tokpost",
		Short:         "Upload videos to TikTok through a real browser.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A .env file is optional.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to read .env: %w", err)
			}

			cfg, err := config.Load(s.configPath)
			if err != nil {
				observability.InitializeLogger(config.Default().Logger)
				return err
			}
			s.cfg = cfg

			observability.InitializeLogger(cfg.Logger)
			s.logger().Debug("Starting tokpost", zap.String("version", Version))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync()
		},
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.PersistentFlags().StringVar(&s.configPath, "config", "", "config file (default is the user config dir)")

	root.AddCommand(
		newUploadCmd(s),
		newBatchCmd(s),
		newAuthCmd(s),
		newWatchCmd(s),
		newOpenCmd(s),
		newConfigCmd(s),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
