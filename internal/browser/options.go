// Package browser provides the chromedp-backed page the uploader drives,
// with shared anti-bot-detection options.
package browser

import (
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/tokpost/internal/config"
)

// DefaultUserAgent is a realistic Chrome user agent
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Options returns chromedp allocator options with anti-bot-detection measures.
// All browser instances should use this to ensure consistent stealth configuration.
func Options(b config.BrowserConfig, proxy config.ProxyConfig) []chromedp.ExecAllocatorOption {
	userAgent := b.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.Headless),

		// Prevent navigator.webdriver = true detection
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if b.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(b.UserDataDir))
	}

	if b.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}

	// Credentials are answered through the Fetch domain, not the flag.
	if proxy.Enabled() {
		opts = append(opts, chromedp.ProxyServer(proxy.Address()))
	}

	return opts
}
