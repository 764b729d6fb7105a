package ports

import "context"

// SessionStatus is a snapshot of the chat session published by the worker.
type SessionStatus struct {
	Connected bool   `json:"connected"`
	InChannel bool   `json:"in_channel"`
	Channel   string `json:"channel"`
	Pending   int    `json:"pending"`
}

type SessionPort interface {
	Join(ctx context.Context, channel string) error
	Say(ctx context.Context, text string) error
	Status() SessionStatus
	Subscribe() (<-chan ChatMessage, func())
}
