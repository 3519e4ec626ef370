package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/app"
	"github.com/ibeckermayer/tokpost/internal/batch"
	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/schedule"
	"github.com/ibeckermayer/tokpost/internal/types"
)

func newUploadCmd(s *state) *cobra.Command {
	var (
		creds     credentialFlags
		browser   browserFlags
		video     string
		caption   string
		at        string
		productID string
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload one video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			task := types.VideoTask{Path: video, Caption: caption, ProductID: productID}
			if at != "" {
				loc, err := a.Location()
				if err != nil {
					return err
				}
				t, err := schedule.Parse(at, loc)
				if err != nil {
					return err
				}
				task.Schedule = &t
			}

			report, err := a.Upload(cmd.Context(), task, cred)
			if err != nil {
				return err
			}
			return summarize(cmd.OutOrStdout(), report)
		},
	}

	creds.bind(cmd)
	browser.bind(cmd)
	cmd.Flags().StringVarP(&video, "video", "v", "", "path to the video file")
	cmd.Flags().StringVarP(&caption, "description", "d", "", "caption, with #hashtags and @mentions")
	cmd.Flags().StringVar(&at, "schedule", "", "publish time, RFC3339 or \"YYYY-MM-DD HH:MM\" in batch.timezone")
	cmd.Flags().StringVar(&productID, "product-id", "", "product to link to the post")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}

// newApp builds the App with progress lines on the command's stderr.
func newApp(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) (*app.App, error) {
	out := cmd.ErrOrStderr()
	return app.New(cfg, logger, app.WithProgress(func(o types.UploadOutcome) {
		printOutcome(out, o)
	}))
}

func printOutcome(w io.Writer, o types.UploadOutcome) {
	if o.Succeeded() {
		fmt.Fprintf(w, "ok    %s (attempts: %d)\n", o.Task.Path, o.Attempts)
		return
	}
	fmt.Fprintf(w, "FAIL  %s [%s] %s\n", o.Task.Path, o.Reason, o.Message)
}

// summarize prints the run's totals and turns any failure into
// ErrVideosFailed.
func summarize(w io.Writer, r *batch.Report) error {
	fmt.Fprintf(w, "run %s: %d uploaded, %d failed\n",
		r.RunID, len(r.Outcomes)-len(r.Failed), len(r.Failed))
	if !r.Succeeded() {
		return fmt.Errorf("%w: %d of %d", ErrVideosFailed, len(r.Failed), len(r.Outcomes))
	}
	return nil
}
