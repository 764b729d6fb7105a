package ports

import (
	"context"
	"net"
)

type ChatStreamPort interface {
	Connect(ctx context.Context) error
	JoinChannel(channel string) error
	SendMessage(channel, text string)
	Enqueue(line string)
	Poll(ctx context.Context) ([]ChatMessage, error)
	IsConnected() bool
	CurrentChannel() string
	Logins() uint64
	Pending() int
	Close() error
}

// ChatMessage is one PRIVMSG decoded from the chat stream.
type ChatMessage struct {
	Channel  string `json:"channel"` // with the leading '#'
	Username string `json:"username"`
	Text     string `json:"message"`
}

type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}
