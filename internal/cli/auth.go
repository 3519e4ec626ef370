package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/tokpost/internal/auth"
)

func newAuthCmd(s *state) *cobra.Command {
	var (
		browser  browserFlags
		input    string
		header   bool
		username string
		password string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in accounts and save their cookies",
		Long: `Log in one account (-u/-p) or every "username,password" row of a CSV
file (-i) and write each account's cookies to <output>/<username>.txt.
Those files can be passed to upload and batch with --cookies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var accounts []auth.Account
			switch {
			case input != "" && username != "":
				return errors.New("give either --input or --username, not both")
			case input != "":
				path, err := homedir.Expand(input)
				if err != nil {
					return err
				}
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				if accounts, err = auth.ReadAccounts(f, header); err != nil {
					return err
				}
			case username != "" && password != "":
				accounts = []auth.Account{{Username: username, Password: password}}
			default:
				return errors.New("give --input, or --username with --password")
			}
			if len(accounts) == 0 {
				return errors.New("no accounts to log in")
			}

			outDir, err := homedir.Expand(output)
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

			results, err := a.LoginAccounts(cmd.Context(), accounts, outDir)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %s: %s\n", r.Username, r.Error)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok    %s -> %s\n", r.Username, r.Jar)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d logins failed", failed, len(results))
			}
			return nil
		},
	}

	browser.bind(cmd)
	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV file of username,password rows")
	cmd.Flags().BoolVar(&header, "header", false, "skip the first CSV row")
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "directory for the cookie files")
	return cmd
}
