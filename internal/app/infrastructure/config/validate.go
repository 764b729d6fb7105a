package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

func (m *Manager) validate(cfg *Config) error {
	// app
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if cfg.App.LogLevel != "" && !validLevels[cfg.App.LogLevel] {
		return fmt.Errorf("app.log_level must be one of trace, debug, info, warn, error; got %s", cfg.App.LogLevel)
	}
	cfg.App.Channel = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cfg.App.Channel), "#"))

	// irc
	if cfg.IRC.Address == "" {
		if cfg.IRC.TLS {
			cfg.IRC.Address = DefaultTLSAddress
		} else {
			cfg.IRC.Address = DefaultAddress
		}
	}
	if _, _, err := net.SplitHostPort(cfg.IRC.Address); err != nil {
		return fmt.Errorf("irc.address: %w", err)
	}
	if cfg.IRC.ThrottleMs < MinThrottleMs {
		return fmt.Errorf("irc.throttle_ms must be >= %d", MinThrottleMs)
	}
	if cfg.IRC.ReadWaitMs <= 0 {
		return errors.New("irc.read_wait_ms must be > 0")
	}
	if cfg.IRC.LoginTimeoutSeconds <= 0 {
		return errors.New("irc.login_timeout_seconds must be > 0")
	}
	if cfg.IRC.PollIntervalMs <= 0 {
		return errors.New("irc.poll_interval_ms must be > 0")
	}
	if cfg.IRC.Reconnect.MaxAttempts < 1 {
		return errors.New("irc.reconnect.max_attempts must be >= 1")
	}
	if cfg.IRC.Reconnect.InitialBackoffMs < 0 {
		return errors.New("irc.reconnect.initial_backoff_ms must be >= 0")
	}

	// proxy
	if cfg.Proxy != nil && cfg.Proxy.Address != "" && (cfg.Proxy.Port <= 0 || cfg.Proxy.Port > 65535) {
		return errors.New("proxy.port must be in [1,65535]")
	}

	// reader
	if cfg.Reader.MaxLength < 1 {
		return errors.New("reader.max_length must be >= 1")
	}
	for i, u := range cfg.Reader.MutedUsers {
		cfg.Reader.MutedUsers[i] = strings.ToLower(strings.TrimSpace(u))
	}

	// announcer
	if cfg.Announcer.IntervalSeconds < MinAnnounceSeconds {
		cfg.Announcer.IntervalSeconds = MinAnnounceSeconds
	}
	if cfg.Announcer.Enabled && strings.TrimSpace(cfg.Announcer.Text) == "" {
		return errors.New("announcer.text is required when the announcer is enabled")
	}

	// http
	if cfg.HTTP.Address != "" {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Address); err != nil {
			return fmt.Errorf("http.address: %w", err)
		}
	}

	return nil
}
