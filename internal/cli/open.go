package cli

import (
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/tokpost/internal/app"
)

func newOpenCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|cache|report>",
		Short:     "Open the config file, the cache dir or the last run report",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{app.OpenConfig, app.OpenCache, app.OpenReport},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(s.cfg, s.logger())
			if err != nil {
				return err
			}
			return a.OpenPath(args[0])
		},
	}
}
