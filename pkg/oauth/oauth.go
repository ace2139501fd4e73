// Package oauth keeps an OAuth 2.0 credential usable for channelscope: it
// loads the cached token, refreshes it when it expires and falls back to the
// browser consent flow when nothing else works.
package oauth

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var (
	ErrInvalidState = errors.New("oauth callback state mismatch")
	ErrAccessDenied = errors.New("authorization was denied")
	ErrMissingCode  = errors.New("oauth callback carried no code")
)

// CallbackPath is where the provider redirects after consent.
const CallbackPath = "/callback"

// RedirectURL is the loopback redirect registered for the callback listener.
func RedirectURL(port int) string {
	return fmt.Sprintf("http://localhost:%d%s", port, CallbackPath)
}

// ConfigFromFile reads a Google "installed app" client secrets file and
// points its redirect at the local callback listener.
func ConfigFromFile(path, redirectURL string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read client secrets: %w", err)
	}

	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secrets: %w", err)
	}
	cfg.RedirectURL = redirectURL

	return cfg, nil
}
