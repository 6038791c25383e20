package executor

import (
	"context"
	"fmt"

	"github.com/elee1766/gotrae/src/aisdk"
)

// callModel sends msgs and returns the reply. In streaming mode text deltas
// are emitted as they arrive and the aggregated reply is merged into the
// provider history, which streamed calls leave untouched.
func (r *run) callModel(ctx context.Context, msgs []aisdk.Message, reuse bool) (*aisdk.Response, error) {
	e := r.engine
	tools := e.toolbox.ChatTools()

	var history []aisdk.Message
	if reuse {
		history = r.transcript
	}

	if !e.stream {
		resp, err := e.client.Chat(ctx, msgs, e.cfg, tools, reuse)
		if err != nil {
			return nil, err
		}
		r.transcript = appendTranscript(history, msgs, resp)
		r.emitter.EmitOutput(resp.AllText(), false)
		return resp, nil
	}

	stream, err := e.client.ChatStream(ctx, msgs, e.cfg, tools, reuse)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	resp, err := aisdk.AggregateStream(stream, func(chunk *aisdk.StreamChunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.emitter.EmitOutput(chunk.Text(), true)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	r.transcript = appendTranscript(history, msgs, resp)
	e.client.SetChatHistory(r.transcript)
	return resp, nil
}

func appendTranscript(history, msgs []aisdk.Message, resp *aisdk.Response) []aisdk.Message {
	out := make([]aisdk.Message, 0, len(history)+len(msgs)+1+len(resp.ToolCalls))
	out = append(out, history...)
	out = append(out, msgs...)
	return append(out, ReplyMessages(resp)...)
}
