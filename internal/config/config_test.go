package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MESHCHAT_LISTEN_ADDR", "")
	t.Setenv("MESHCHAT_SERVER_URL", "")
	t.Setenv("MESHCHAT_STUN_SERVERS", "")
	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.WebSocketURL != "ws://localhost:8080/ws" {
		t.Errorf("WebSocketURL = %q, want ws://localhost:8080/ws", cfg.WebSocketURL)
	}
	if len(cfg.STUNServers) != 2 {
		t.Errorf("STUNServers = %v, want two defaults", cfg.STUNServers)
	}
}

func TestLoadFlagOverridesEnv(t *testing.T) {
	t.Setenv("MESHCHAT_SERVER_URL", "http://env.example.com")
	cfg, err := Load(Options{ServerURL: "https://flag.example.com"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "https://flag.example.com" {
		t.Errorf("ServerURL = %q, want flag value", cfg.ServerURL)
	}
	if cfg.WebSocketURL != "wss://flag.example.com/ws" {
		t.Errorf("WebSocketURL = %q, want wss scheme", cfg.WebSocketURL)
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("MESHCHAT_STUN_SERVERS", "stun:a.example.com:3478,stun:b.example.com:3478")
	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.STUNServers) != 2 || cfg.STUNServers[0] != "stun:a.example.com:3478" {
		t.Errorf("STUNServers = %v, want env values", cfg.STUNServers)
	}
}

func TestDeriveWebSocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws", false},
		{"https://chat.example.com", "wss://chat.example.com/ws", false},
		{"ws://localhost:8080", "ws://localhost:8080/ws", false},
		{"https://chat.example.com/base/", "wss://chat.example.com/base/ws", false},
		{"ftp://nope", "", true},
	}
	for _, tt := range tests {
		got, err := deriveWebSocketURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("deriveWebSocketURL(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("deriveWebSocketURL(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("deriveWebSocketURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
