// Package screenshot captures full-page screenshots of monitored websites
// using a locally installed headless Chrome/Chromium.
package screenshot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"sitewatch/internal/urlutil"
)

const captureTimeout = 60 * time.Second

// chromeCandidates are the binary names tried, in order, when no explicit
// path is configured.
var chromeCandidates = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
}

// Screenshotter captures a screenshot of a URL and returns the saved file
// path.
type Screenshotter interface {
	Capture(ctx context.Context, rawURL string) (string, error)
}

// ChromeCapturer shells out to headless Chrome.
type ChromeCapturer struct {
	binary string
	dir    string
	now    func() time.Time
}

// NewChromeCapturer locates a Chrome binary (binaryPath overrides discovery)
// and prepares dir for output files. It errors when no usable browser is
// found.
func NewChromeCapturer(binaryPath, dir string) (*ChromeCapturer, error) {
	binary, err := findChrome(binaryPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot dir: %w", err)
	}
	return &ChromeCapturer{binary: binary, dir: dir, now: time.Now}, nil
}

func findChrome(binaryPath string) (string, error) {
	if binaryPath != "" {
		if _, err := exec.LookPath(binaryPath); err != nil {
			return "", fmt.Errorf("configured chrome binary %s not usable: %w", binaryPath, err)
		}
		return binaryPath, nil
	}
	for _, candidate := range chromeCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no chrome/chromium binary found in PATH")
}

// Capture renders rawURL in headless Chrome and writes a PNG named after the
// site and capture time.
func (c *ChromeCapturer) Capture(ctx context.Context, rawURL string) (string, error) {
	name := fmt.Sprintf("%s-%s.png", urlutil.SiteSlug(rawURL), c.now().UTC().Format("20060102-150405"))
	outPath := filepath.Join(c.dir, name)

	runCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.binary,
		"--headless",
		"--disable-gpu",
		"--no-sandbox",
		"--ignore-certificate-errors",
		"--window-size=1280,720",
		"--screenshot="+outPath,
		rawURL,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("chrome screenshot of %s failed: %w (%s)", rawURL, err, string(out))
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("chrome exited cleanly but wrote no screenshot for %s", rawURL)
	}
	return outPath, nil
}

// Noop is used when screenshots are disabled or no browser is available.
type Noop struct{}

// Capture always reports that screenshots are unavailable.
func (Noop) Capture(context.Context, string) (string, error) {
	return "", fmt.Errorf("screenshots disabled")
}
