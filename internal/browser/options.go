// internal/browser/options.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/parkbook/internal/config"
)

// DefaultAllocatorOptions builds the Chrome launch options for cfg on top of
// chromedp's defaults. The profile directory is what carries the signed-in
// session, so a bad path is reported rather than silently ignored.
func DefaultAllocatorOptions(cfg config.BrowserConfig) ([]chromedp.ExecAllocatorOption, error) {
	flags, err := allocatorFlags(cfg)
	if err != nil {
		return nil, err
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range flags {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts, nil
}

// allocatorFlags resolves the command-line switches that differ from chromedp's
// defaults. Later entries in cfg.Args override earlier settings.
func allocatorFlags(cfg config.BrowserConfig) (map[string]interface{}, error) {
	flags := map[string]interface{}{
		"headless":                 cfg.Headless,
		"disable-dev-shm-usage":    true,
		"no-first-run":             true,
		"no-default-browser-check": true,
	}
	if cfg.DisableGPU {
		flags["disable-gpu"] = true
	}

	if cfg.ProfileDir != "" {
		dir, err := homedir.Expand(cfg.ProfileDir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand browser profile dir %q: %w", cfg.ProfileDir, err)
		}
		flags["user-data-dir"] = dir
	}
	if cfg.ProfileName != "" {
		flags["profile-directory"] = cfg.ProfileName
	}

	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(strings.TrimSpace(arg), "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			flags[name] = value
		} else {
			flags[name] = true
		}
	}
	return flags, nil
}
