package aisdk

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finish(r FinishReason) *FinishReason { return &r }

func TestAggregateStream(t *testing.T) {
	stream := NewSliceStream([]StreamChunk{
		{Model: "claude-x", Usage: &Usage{InputTokens: 12}},
		{Content: []ContentItem{NewTextContent("Hel")}},
		{Content: []ContentItem{NewTextContent("lo")}},
		{FinishReason: finish(FinishStop), Usage: &Usage{OutputTokens: 7}},
	}, nil)

	var seen int
	resp, err := AggregateStream(stream, func(*StreamChunk) error {
		seen++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, seen)
	assert.Equal(t, "Hello", resp.Text())
	assert.Equal(t, "claude-x", resp.Model)
	assert.Equal(t, FinishStop, resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 7, resp.Usage.OutputTokens)
}

func TestAggregateStreamCallbackError(t *testing.T) {
	stream := NewSliceStream([]StreamChunk{{Content: []ContentItem{NewTextContent("x")}}}, nil)
	boom := errors.New("stop")
	_, err := AggregateStream(stream, func(*StreamChunk) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestSliceStreamClose(t *testing.T) {
	stream := NewSliceStream([]StreamChunk{{Model: "m"}}, nil)
	require.NoError(t, stream.Close())
	_, err := stream.Read()
	assert.ErrorIs(t, err, ErrStreamClosed)
}

type fakeSource struct {
	data []string
}

func (f *fakeSource) NextData() (string, error) {
	if len(f.data) == 0 {
		return "", io.EOF
	}
	d := f.data[0]
	f.data = f.data[1:]
	return d, nil
}

func TestDecodingStreamSkipsUndecodable(t *testing.T) {
	src := &fakeSource{data: []string{"a", "skip", "b"}}
	stream := NewDecodingStream(src, func(data string) (*StreamChunk, bool) {
		if data == "skip" {
			return nil, false
		}
		return &StreamChunk{Content: []ContentItem{NewTextContent(data)}}, true
	}, nil)

	text, err := CollectStreamContent(stream)
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

func TestDecodingStreamFlushesOnce(t *testing.T) {
	flushes := 0
	stream := NewDecodingStream(&fakeSource{data: []string{"a"}}, func(data string) (*StreamChunk, bool) {
		return &StreamChunk{Content: []ContentItem{NewTextContent(data)}}, true
	}, nil).WithFlush(func() (*StreamChunk, bool) {
		flushes++
		return &StreamChunk{Content: []ContentItem{NewTextContent("z")}}, true
	})

	var got []string
	for {
		chunk, err := stream.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk.Text())
	}
	assert.Equal(t, []string{"a", "z"}, got)

	_, err := stream.Read()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, flushes)
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 1, OutputTokens: 2, ReasoningTokens: 3}
	u.Add(Usage{InputTokens: 10, OutputTokens: 20, CacheReadInputTokens: 5})
	assert.Equal(t, Usage{InputTokens: 11, OutputTokens: 22, CacheReadInputTokens: 5, ReasoningTokens: 3}, u)
	assert.Equal(t, 33, u.Total())
}

func TestToolResultConstructors(t *testing.T) {
	call := ToolCall{Name: "bash", CallID: "c1"}
	ok := NewToolSuccess(call, "out")
	assert.True(t, ok.Success)
	assert.Equal(t, "out", ok.Text())
	assert.Empty(t, ok.Error)

	bad := NewToolFailure(call, "boom")
	assert.False(t, bad.Success)
	assert.Equal(t, "boom", bad.Text())
	assert.Empty(t, bad.Result)

	msg := NewToolMessage(bad)
	assert.Equal(t, RoleTool, msg.Role)
	assert.Empty(t, msg.Content)
	require.NotNil(t, msg.ToolResult)
	assert.Equal(t, "c1", msg.ToolResult.CallID)
}
