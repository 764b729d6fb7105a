package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	m, err := New(path)
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, DefaultAddress, cfg.IRC.Address)
	assert.Equal(t, 5000, cfg.IRC.ThrottleMs)
	assert.Equal(t, []string{"nightbot"}, cfg.Reader.MutedUsers)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "oauth")
}

func TestNew_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"app":{"channel":"#Tsm_Dyrus"},"irc":{"tls":true,"address":""}}`), 0644))

	m, err := New(path)
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, "tsm_dyrus", cfg.App.Channel)
	assert.Equal(t, DefaultTLSAddress, cfg.IRC.Address)
	assert.Equal(t, 100, cfg.Reader.MaxLength)
}

func TestNew_InvalidFile(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "broken json", body: `{"app":`},
		{name: "bad log level", body: `{"app":{"log_level":"loud"}}`},
		{name: "bad address", body: `{"irc":{"address":"no-port"}}`},
		{name: "zero max length", body: `{"reader":{"max_length":0}}`},
		{name: "zero throttle", body: `{"irc":{"throttle_ms":0}}`},
		{name: "throttle below flood limit", body: `{"irc":{"throttle_ms":4999}}`},
		{name: "zero reconnect attempts", body: `{"irc":{"reconnect":{"max_attempts":0}}}`},
		{name: "announcer without text", body: `{"announcer":{"enabled":true,"text":" "}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))

			_, err := New(path)
			assert.Error(t, err)
		})
	}
}

func TestManager_AnnouncerIntervalClamped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"announcer":{"interval_seconds":5}}`), 0644))

	m, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, MinAnnounceSeconds, m.Get().Announcer.IntervalSeconds)
}

func TestManager_Update(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m, err := New(path)
	require.NoError(t, err)

	require.NoError(t, m.Update(func(cfg *Config) {
		cfg.Reader.FilterAt = true
		cfg.Reader.MutedUsers = append(cfg.Reader.MutedUsers, " StreamElements ")
	}))
	assert.True(t, m.Get().Reader.FilterAt)
	assert.Equal(t, []string{"nightbot", "streamelements"}, m.Get().Reader.MutedUsers)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Config
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.True(t, onDisk.Reader.FilterAt)

	err = m.Update(func(cfg *Config) {
		cfg.Reader.MaxLength = -1
		cfg.Reader.FilterAt = false
	})
	assert.Error(t, err)
	assert.Equal(t, 100, m.Get().Reader.MaxLength)
	assert.True(t, m.Get().Reader.FilterAt)
}

func TestNewCredentials(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		token     string
		wantUser  string
		wantOAuth string
	}{
		{name: "adds prefix", username: "ImABotBoy", token: "abc123", wantUser: "imabotboy", wantOAuth: "oauth:abc123"},
		{name: "keeps prefix", username: "bot", token: "oauth:abc123", wantUser: "bot", wantOAuth: "oauth:abc123"},
		{name: "empty token", username: "bot", token: "", wantUser: "bot", wantOAuth: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCredentials(tt.username, tt.token)
			assert.Equal(t, tt.wantUser, c.Username)
			assert.Equal(t, tt.wantOAuth, c.OAuth)
			assert.NotContains(t, c.String(), "abc123")
		})
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvOAuth, "")

	_, err := LoadCredentials("")
	assert.ErrorIs(t, err, ErrNoCredentials)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TWITCH_USERNAME=Bot\nTWITCH_OAUTH=xyz\n"), 0600))

	// godotenv does not override variables that are already set, even when empty
	require.NoError(t, os.Unsetenv(EnvUsername))
	require.NoError(t, os.Unsetenv(EnvOAuth))

	creds, err := LoadCredentials(envFile)
	require.NoError(t, err)
	assert.Equal(t, "bot", creds.Username)
	assert.Equal(t, "oauth:xyz", creds.OAuth)

	_, err = LoadCredentials(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
