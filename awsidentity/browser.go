package awsidentity

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// BrowserLauncher opens URLs in the user's browser. Launch failures are
// never fatal to the login flow; callers log and continue.
type BrowserLauncher struct {
	DisableBrowser bool
	CustomCommand  string
}

// NewBrowserLauncher creates a browser launcher.
func NewBrowserLauncher(disableBrowser bool) *BrowserLauncher {
	return &BrowserLauncher{DisableBrowser: disableBrowser}
}

// OpenURL attempts to open a URL in the user's default browser.
func (b *BrowserLauncher) OpenURL(url string) error {
	if b.DisableBrowser {
		return nil
	}

	if v := os.Getenv("AWS_IDENTITY_DISABLE_BROWSER"); v == "1" || v == "true" {
		return nil
	}

	if b.CustomCommand != "" {
		return b.openWithCustomCommand(url)
	}
	return b.openWithDefaultBrowser(url)
}

func (b *BrowserLauncher) openWithDefaultBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case "linux":
		candidates := []string{"xdg-open", "sensible-browser", "x-www-browser", "firefox", "chromium", "google-chrome"}
		for _, name := range candidates {
			if _, err := exec.LookPath(name); err == nil {
				cmd = exec.Command(name, url)
				break
			}
		}
		if cmd == nil {
			return fmt.Errorf("no suitable browser found")
		}
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return cmd.Start()
}

func (b *BrowserLauncher) openWithCustomCommand(url string) error {
	command := strings.ReplaceAll(b.CustomCommand, "{url}", url)
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return fmt.Errorf("empty custom browser command")
	}
	return exec.Command(parts[0], parts[1:]...).Start()
}
