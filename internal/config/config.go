// Package config holds the CLI configuration types.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Default configuration values.
const (
	DefaultListenAddr = ":8080"
	DefaultServerURL  = "http://localhost:8080"
	DefaultSTUN1      = "stun:stun.l.google.com:19302"
	DefaultSTUN2      = "stun:stun1.l.google.com:19302"
)

// Config holds application configuration.
type Config struct {
	// ListenAddr is the address the relay server binds to.
	ListenAddr string

	// ServerURL is the relay's HTTP base URL (client side).
	ServerURL string

	// WebSocketURL is derived from ServerURL.
	WebSocketURL string

	// DisplayName is the name shown to other room members.
	DisplayName string

	// STUNServers for WebRTC negotiation.
	STUNServers []string
}

// Options carries CLI flag overrides into Load.
type Options struct {
	ListenAddr  string
	ServerURL   string
	DisplayName string
	STUNServers []string
}

// Load resolves configuration with the priority:
// 1. CLI flags (passed via Options)
// 2. Environment variables
// 3. Hardcoded defaults
func Load(opts Options) (*Config, error) {
	listenAddr := opts.ListenAddr
	if listenAddr == "" {
		listenAddr = os.Getenv("MESHCHAT_LISTEN_ADDR")
	}
	if listenAddr == "" {
		listenAddr = DefaultListenAddr
	}

	serverURL := opts.ServerURL
	if serverURL == "" {
		serverURL = os.Getenv("MESHCHAT_SERVER_URL")
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	serverURL = strings.TrimRight(serverURL, "/")

	wsURL, err := deriveWebSocketURL(serverURL)
	if err != nil {
		return nil, err
	}

	displayName := opts.DisplayName
	if displayName == "" {
		displayName = os.Getenv("MESHCHAT_DISPLAY_NAME")
	}

	stunServers := opts.STUNServers
	if len(stunServers) == 0 {
		if env := os.Getenv("MESHCHAT_STUN_SERVERS"); env != "" {
			stunServers = strings.Split(env, ",")
		}
	}
	if len(stunServers) == 0 {
		stunServers = []string{DefaultSTUN1, DefaultSTUN2}
	}

	return &Config{
		ListenAddr:   listenAddr,
		ServerURL:    serverURL,
		WebSocketURL: wsURL,
		DisplayName:  displayName,
		STUNServers:  stunServers,
	}, nil
}

// deriveWebSocketURL maps the HTTP base URL onto the relay's /ws endpoint.
func deriveWebSocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
