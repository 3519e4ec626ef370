package cli

import (
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/tokpost/internal/auth"
	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/proxy"
)

// Environment fallbacks for credential flags, usually set in .env.
const (
	envSessionID = config.EnvPrefix + "_SESSIONID"
	envCookies   = config.EnvPrefix + "_COOKIES"
	envUsername  = config.EnvPrefix + "_USERNAME"
	envPassword  = config.EnvPrefix + "_PASSWORD"
)

type credentialFlags struct {
	sessionID  string
	cookieFile string
	username   string
	password   string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.sessionID, "sessionid", "s", "", "sessionid cookie value (env "+envSessionID+")")
	cmd.Flags().StringVarP(&f.cookieFile, "cookies", "c", "", "Netscape or JSON cookie file")
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "account username or email (env "+envUsername+")")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "account password (env "+envPassword+")")
}

// credential builds the login source from flags, falling back to the
// environment only when no flag was given.
func (f *credentialFlags) credential() (*auth.Credential, error) {
	opts := auth.CredentialOptions{
		SessionID:  f.sessionID,
		CookieFile: f.cookieFile,
		Username:   f.username,
		Password:   f.password,
	}
	if opts == (auth.CredentialOptions{}) {
		opts = auth.CredentialOptions{
			SessionID:  os.Getenv(envSessionID),
			CookieText: os.Getenv(envCookies),
			Username:   os.Getenv(envUsername),
			Password:   os.Getenv(envPassword),
		}
	}
	if opts.CookieFile != "" {
		path, err := homedir.Expand(opts.CookieFile)
		if err != nil {
			return nil, err
		}
		opts.CookieFile = path
	}
	return auth.NewCredential(opts)
}

type browserFlags struct {
	show      bool
	keepOpen  bool
	remoteURL string
	dataDir   string
	proxy     string
}

func (f *browserFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.show, "attach", false, "show the browser window instead of running headless")
	cmd.Flags().BoolVar(&f.keepOpen, "keep-open", false, "leave the browser open when done")
	cmd.Flags().StringVar(&f.remoteURL, "remote-url", "", "DevTools URL of an already running browser")
	cmd.Flags().StringVar(&f.dataDir, "user-data-dir", "", "browser profile directory to reuse between runs")
	cmd.Flags().StringVar(&f.proxy, "proxy", "", "proxy as host:port or user:pass@host:port")
}

// apply returns a copy of cfg with the browser flags that were set.
func (f *browserFlags) apply(cmd *cobra.Command, cfg *config.Config) (*config.Config, error) {
	c := *cfg
	if cmd.Flags().Changed("attach") {
		c.Browser.Headless = !f.show
	}
	if cmd.Flags().Changed("keep-open") {
		c.Browser.KeepOpen = f.keepOpen
	}
	if f.remoteURL != "" {
		c.Browser.RemoteURL = f.remoteURL
	}
	if f.dataDir != "" {
		c.Browser.UserDataDir = f.dataDir
	}
	if f.proxy != "" {
		p, err := proxy.Parse(f.proxy)
		if err != nil {
			return nil, err
		}
		c.Proxy.Host, c.Proxy.Port = p.Host, p.Port
		c.Proxy.User, c.Proxy.Pass = p.User, p.Pass
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
