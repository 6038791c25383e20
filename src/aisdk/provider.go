package aisdk

import (
	"context"
)

// Provider is implemented by every vendor adapter.
//
// Each adapter keeps its own vendor-shaped history. When reuseHistory is true
// that history is sent ahead of msgs. Chat appends the assistant reply to the
// history; ChatStream does not, callers merge streamed replies with
// SetChatHistory when they need them remembered.
type Provider interface {
	SetChatHistory(msgs []Message)
	Chat(ctx context.Context, msgs []Message, cfg ModelConfig, tools []*ChatTool, reuseHistory bool) (*Response, error)
	ChatStream(ctx context.Context, msgs []Message, cfg ModelConfig, tools []*ChatTool, reuseHistory bool) (StreamInterface, error)
	ProviderName() string
}
