package auth

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
)

// Navigator performs the terminal redirect that ends a login or logout.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(ctx context.Context, url string) error {
	return f(ctx, url)
}

// BrowserNavigator opens URLs in the system browser and prints them as a
// fallback. With NoBrowser set it only prints.
type BrowserNavigator struct {
	Out       io.Writer
	NoBrowser bool

	open func(url string) error
}

// NewBrowserNavigator returns a navigator that writes its messages to out.
func NewBrowserNavigator(out io.Writer, noBrowser bool) *BrowserNavigator {
	if out == nil {
		out = os.Stderr
	}
	return &BrowserNavigator{Out: out, NoBrowser: noBrowser, open: openBrowser}
}

// Navigate implements Navigator.
func (n *BrowserNavigator) Navigate(_ context.Context, url string) error {
	out := n.Out
	if out == nil {
		out = os.Stderr
	}

	if n.NoBrowser {
		fmt.Fprintf(out, "\nOpen this URL in your browser:\n%s\n\n", url)
		return nil
	}

	open := n.open
	if open == nil {
		open = openBrowser
	}
	if err := open(url); err != nil {
		fmt.Fprintf(out, "\nCouldn't open browser automatically.\nOpen this URL in your browser:\n%s\n\n", url)
		return nil
	}

	fmt.Fprintln(out, "\nOpening browser...")
	fmt.Fprintf(out, "If the browser doesn't open, visit: %s\n\n", url)
	return nil
}

// RecordingNavigator remembers every URL it is asked to open.
type RecordingNavigator struct {
	mu   sync.Mutex
	urls []string
}

// Navigate implements Navigator.
func (n *RecordingNavigator) Navigate(_ context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
	return nil
}

// URLs returns the navigated URLs in order.
func (n *RecordingNavigator) URLs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.urls...)
}

// Last returns the most recent URL, or "".
func (n *RecordingNavigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.urls) == 0 {
		return ""
	}
	return n.urls[len(n.urls)-1]
}

// openBrowser opens the specified URL in the default browser.
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return exec.Command(cmd, args...).Start() //nolint:gosec,noctx // G204: cmd is hardcoded per-platform; fire-and-forget
}
