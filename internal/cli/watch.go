package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newWatchCmd(s *state) *cobra.Command {
	var (
		creds   credentialFlags
		browser browserFlags
		expr    string
	)

	cmd := &cobra.Command{
		Use:   "watch <manifest>",
		Short: "Upload a manifest on a cron schedule until interrupted",
		Long: `Re-read the manifest and upload it as a batch every time the cron
expression fires, in batch.timezone. The expression defaults to batch.cron
and accepts five fields or descriptors such as "@daily".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if expr == "" {
				expr = s.cfg.Batch.Cron
			}
			if expr == "" {
				return errors.New("no schedule: pass --cron or set batch.cron")
			}
			cred, err := creds.credential()
			if err != nil {
				return err
			}
			cfg, err := browser.apply(cmd, s.cfg)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, cfg, s.logger())
			if err != nil {
				return err
			}
			return a.Watch(cmd.Context(), args[0], expr, cred)
		},
	}

	creds.bind(cmd)
	browser.bind(cmd)
	cmd.Flags().StringVar(&expr, "cron", "", "cron expression (default batch.cron)")
	return cmd
}
