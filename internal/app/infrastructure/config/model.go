package config

import "time"

type Config struct {
	App       App       `json:"app"`
	IRC       IRC       `json:"irc"`
	Proxy     *Proxy    `json:"proxy"`
	Reader    Reader    `json:"reader"`
	Announcer Announcer `json:"announcer"`
	HTTP      HTTP      `json:"http"`
	Storage   Storage   `json:"storage"`
}

type App struct {
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`
	GinMode   string `json:"gin_mode"`
	AuthToken string `json:"auth_token"` // bearer token for /metrics and write endpoints
	Channel   string `json:"channel"`    // joined right after connect, may be empty
}

type IRC struct {
	Address             string    `json:"address"`
	TLS                 bool      `json:"tls"`
	ThrottleMs          int       `json:"throttle_ms"`
	ReadWaitMs          int       `json:"read_wait_ms"`
	LoginTimeoutSeconds int       `json:"login_timeout_seconds"`
	PollIntervalMs      int       `json:"poll_interval_ms"`
	Reconnect           Reconnect `json:"reconnect"`
}

type Reconnect struct {
	MaxAttempts      int `json:"max_attempts"`
	InitialBackoffMs int `json:"initial_backoff_ms"`
}

type Proxy struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

type Reader struct {
	Enabled        bool     `json:"enabled"`
	FilterAt       bool     `json:"filter_at"`  // only read messages addressed to @channel
	MaxLength      int      `json:"max_length"` // messages this long or longer are skipped
	MutedUsers     []string `json:"muted_users"`
	TranscriptFile string   `json:"transcript_file"`
}

type Announcer struct {
	Enabled         bool   `json:"enabled"`
	IntervalSeconds int    `json:"interval_seconds"`
	Text            string `json:"text"`
}

type HTTP struct {
	Address string `json:"address"`
}

type Storage struct {
	MutedFile string `json:"muted_file"`
}

func (i IRC) Throttle() time.Duration {
	return time.Duration(i.ThrottleMs) * time.Millisecond
}

func (i IRC) ReadWait() time.Duration {
	return time.Duration(i.ReadWaitMs) * time.Millisecond
}

func (i IRC) LoginTimeout() time.Duration {
	return time.Duration(i.LoginTimeoutSeconds) * time.Second
}

func (i IRC) PollInterval() time.Duration {
	return time.Duration(i.PollIntervalMs) * time.Millisecond
}

func (r Reconnect) InitialBackoff() time.Duration {
	return time.Duration(r.InitialBackoffMs) * time.Millisecond
}

func (a Announcer) Interval() time.Duration {
	return time.Duration(a.IntervalSeconds) * time.Second
}
