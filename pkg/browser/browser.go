// Package browser opens the OAuth consent page in the user's browser.
package browser

import (
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"runtime"
)

// Opener launches the platform's default browser.
type Opener struct {
	goos  string
	start func(cmd *exec.Cmd) error
}

func New() *Opener {
	return &Opener{
		goos:  runtime.GOOS,
		start: func(cmd *exec.Cmd) error { return cmd.Start() },
	}
}

// Open opens the specified URL in the default browser.
// It validates the URL before passing it to the system browser to prevent command injection.
func (o *Opener) Open(urlString string) error {
	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https allowed)", parsedURL.Scheme)
	}

	var cmd *exec.Cmd

	switch o.goos {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", urlString) // #nosec G204 -- URL validated above
	case "darwin":
		cmd = exec.Command("open", urlString) // #nosec G204 -- URL validated above
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", urlString) // #nosec G204 -- URL validated above
	default:
		return fmt.Errorf("unsupported platform: %s", o.goos)
	}

	return o.start(cmd)
}

// Open opens urlString with the default Opener.
func Open(urlString string) error {
	return New().Open(urlString)
}

// Prompt builds the consent callback used during authorization: it tells the
// user what is happening on w and tries to open the page, printing the URL
// when no browser can be started.
func Prompt(w io.Writer, open func(string) error) func(authURL string) {
	return func(authURL string) {
		_, _ = fmt.Fprintln(w, "Opening browser for YouTube Analytics authorization...")
		if err := open(authURL); err != nil {
			_, _ = fmt.Fprintf(w, "Could not open browser. Please visit:\n%s\n", authURL)
		}
		_, _ = fmt.Fprintln(w, "Waiting for authorization...")
	}
}
