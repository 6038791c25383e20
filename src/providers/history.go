// Package providers holds the pieces shared by the vendor adapters.
package providers

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/elee1766/gotrae/src/aisdk"
)

// History is an adapter's vendor-shaped conversation.
type History[T any] struct {
	mu    sync.Mutex
	items []T
}

// Set replaces the history.
func (h *History[T]) Set(items []T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append([]T(nil), items...)
}

// Append adds items to the end of the history.
func (h *History[T]) Append(items ...T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, items...)
}

// Snapshot returns a copy of the history.
func (h *History[T]) Snapshot() []T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]T(nil), h.items...)
}

// Len returns the number of entries.
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// Compose returns history followed by msgs when reuse is set, msgs otherwise.
func Compose[T any](h *History[T], msgs []T, reuse bool) []T {
	if !reuse {
		return msgs
	}
	return append(h.Snapshot(), msgs...)
}

// Header builds request headers from base pairs followed by the configured
// extra headers.
func Header(cfg aisdk.ModelConfig, base map[string]string) http.Header {
	h := http.Header{}
	for k, v := range base {
		h.Set(k, v)
	}
	for k, v := range cfg.ExtraHeaders {
		h.Set(k, v)
	}
	return h
}

// RequireAPIKey returns a config error when the provider has no key.
func RequireAPIKey(cfg aisdk.ModelConfig) error {
	if strings.TrimSpace(cfg.Provider.APIKey) == "" {
		return &aisdk.ConfigError{Message: "API key is required", Err: aisdk.ErrNoAPIKey}
	}
	return nil
}

// BaseURL returns the configured base URL or def.
func BaseURL(cfg aisdk.ModelConfig, def string) string {
	if cfg.Provider.BaseURL != "" {
		return cfg.Provider.BaseURL
	}
	return def
}

// ToolCallAccumulator rebuilds tool calls whose name and arguments arrive in
// pieces across stream events.
type ToolCallAccumulator struct {
	calls map[int]*pendingCall
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// Add merges one fragment for the call at index.
func (a *ToolCallAccumulator) Add(index int, id, name, argsFragment string) {
	if a.calls == nil {
		a.calls = map[int]*pendingCall{}
	}
	pc, ok := a.calls[index]
	if !ok {
		pc = &pendingCall{}
		a.calls[index] = pc
	}
	if id != "" {
		pc.id = id
	}
	if name != "" {
		pc.name = name
	}
	pc.args.WriteString(argsFragment)
}

// Pending reports whether any call is buffered.
func (a *ToolCallAccumulator) Pending() bool {
	return len(a.calls) > 0
}

// Flush returns the buffered calls in index order and resets the accumulator.
func (a *ToolCallAccumulator) Flush() []aisdk.ToolCall {
	if len(a.calls) == 0 {
		return nil
	}
	idx := make([]int, 0, len(a.calls))
	for i := range a.calls {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]aisdk.ToolCall, 0, len(idx))
	for _, i := range idx {
		pc := a.calls[i]
		out = append(out, aisdk.ToolCall{
			Name:      pc.name,
			CallID:    pc.id,
			ID:        pc.id,
			Arguments: aisdk.DecodeArguments(pc.args.String()),
		})
	}
	a.calls = nil
	return out
}
