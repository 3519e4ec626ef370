// Command bottest opens a fingerprint audit page in a browser started with
// the same stealth options as uploads, so detection regressions can be
// checked by eye.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/browser"
	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "config file (default is the user config dir)")
	url := flag.String("url", "https://bot.sannysoft.com", "page to open")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	observability.InitializeLogger(cfg.Logger)
	defer observability.Sync()
	logger := observability.GetLogger()

	// Non-headless so you can see it.
	browserCfg := cfg.Browser
	browserCfg.Headless = false

	h, err := browser.NewLauncher(browserCfg, cfg.Proxy, logger).Launch(context.Background())
	if err != nil {
		logger.Fatal("Failed to start browser", zap.Error(err))
	}
	defer h.Close()

	if err := h.Navigate(context.Background(), *url); err != nil {
		logger.Error("Failed to navigate", zap.String("url", *url), zap.Error(err))
		return
	}

	fmt.Println("Press Enter to close the browser...")
	_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
}
