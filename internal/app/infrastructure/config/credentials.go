package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvUsername = "TWITCH_USERNAME"
	EnvOAuth    = "TWITCH_OAUTH"

	oauthPrefix = "oauth:"
)

var ErrNoCredentials = errors.New("twitch credentials are not set")

// Credentials identify the chat account. They are read from the environment
// only and never written to the settings file.
type Credentials struct {
	Username string
	OAuth    string
}

// LoadCredentials reads TWITCH_USERNAME and TWITCH_OAUTH, first loading envFile
// when it exists. Variables already present in the environment win.
func LoadCredentials(envFile string) (Credentials, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Credentials{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	creds := NewCredentials(os.Getenv(EnvUsername), os.Getenv(EnvOAuth))
	if creds.Username == "" || creds.OAuth == "" {
		return Credentials{}, fmt.Errorf("%w: set %s and %s", ErrNoCredentials, EnvUsername, EnvOAuth)
	}
	return creds, nil
}

// NewCredentials normalizes a login pair: the nick is lower-cased and the
// token gets the "oauth:" prefix Twitch expects in PASS.
func NewCredentials(username, token string) Credentials {
	username = strings.ToLower(strings.TrimSpace(username))
	token = strings.TrimSpace(token)
	if token != "" && !strings.HasPrefix(token, oauthPrefix) {
		token = oauthPrefix + token
	}
	return Credentials{Username: username, OAuth: token}
}

// String hides the token so credentials can be logged safely.
func (c Credentials) String() string {
	return fmt.Sprintf("%s (oauth:***)", c.Username)
}
