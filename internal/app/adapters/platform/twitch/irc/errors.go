package irc

import "errors"

var (
	ErrNotConnected   = errors.New("chat stream is not connected")
	ErrLoginRejected  = errors.New("twitch rejected the login")
	ErrSessionLost    = errors.New("chat session lost")
	ErrInvalidChannel = errors.New("invalid channel name")

	errServerReconnect = errors.New("server requested reconnect")
	errClosedByServer  = errors.New("connection closed by server")
)
