package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/tokpost/internal/batch"
)

func newBatchCmd(s *state) *cobra.Command {
	var (
		creds   credentialFlags
		browser browserFlags
		retry   bool
	)

	cmd := &cobra.Command{
		Use:   "batch <manifest>",
		Short: "Upload every video listed in a JSON or TOML manifest",
		Long: `Upload every video listed in a manifest, one after another on a single
browser. A manifest is a JSON list of objects, a JSON object with a "videos"
list, or a TOML file of [[videos]] tables. Each entry needs a path and may
carry a description, a schedule and a product_id.

With --retry-failed the failed videos of the last saved run are uploaded
again and no manifest is read.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if retry == (len(args) == 1) {
				return errors.New("give either a manifest or --retry-failed")
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

			var report *batch.Report
			if retry {
				report, err = a.RetryFailed(cmd.Context(), cred)
			} else {
				loc, lerr := a.Location()
				if lerr != nil {
					return lerr
				}
				tasks, lerr := batch.LoadManifest(args[0], loc)
				if lerr != nil {
					return lerr
				}
				report, err = a.RunBatch(cmd.Context(), tasks, cred)
			}
			if err != nil {
				if report != nil {
					_ = summarize(cmd.OutOrStdout(), report)
				}
				return err
			}
			return summarize(cmd.OutOrStdout(), report)
		},
	}

	creds.bind(cmd)
	browser.bind(cmd)
	cmd.Flags().BoolVar(&retry, "retry-failed", false, "upload the failed videos of the last run again")
	return cmd
}
