package config

const (
	DefaultAddress    = "irc.twitch.tv:6667"
	DefaultTLSAddress = "irc.chat.twitch.tv:6697"

	MinAnnounceSeconds = 60
	// Twitch drops clients that flood chat; queued lines never go out faster.
	MinThrottleMs = 5000
)

func (m *Manager) GetDefault() *Config {
	return &Config{
		App: App{
			LogLevel: "info",
			LogFile:  "logs/main.log",
			GinMode:  "release",
		},
		IRC: IRC{
			Address:             DefaultAddress,
			ThrottleMs:          5000,
			ReadWaitMs:          10,
			LoginTimeoutSeconds: 10,
			PollIntervalMs:      200,
			Reconnect: Reconnect{
				MaxAttempts:      5,
				InitialBackoffMs: 1000,
			},
		},
		Reader: Reader{
			Enabled:        true,
			MaxLength:      100,
			MutedUsers:     []string{"nightbot"},
			TranscriptFile: "logs/transcript.log",
		},
		Announcer: Announcer{
			Enabled:         false,
			IntervalSeconds: 100000,
			Text:            "Chat in this channel is being read aloud by a text-to-speech bot!",
		},
		HTTP: HTTP{
			Address: "127.0.0.1:8080",
		},
		Storage: Storage{
			MutedFile: "cache/muted.json",
		},
	}
}
