package aisdk

import (
	"errors"
	"io"
	"strings"
	"sync"
)

// StreamInterface is a sequence of chunks. Read returns io.EOF once the stream
// is exhausted.
type StreamInterface interface {
	Read() (*StreamChunk, error)
	Close() error
}

// StreamCallback is a function called for each chunk in a stream.
type StreamCallback func(chunk *StreamChunk) error

// StreamToCallback reads a stream and calls the callback for each chunk.
func StreamToCallback(stream StreamInterface, callback StreamCallback) error {
	defer stream.Close()

	for {
		chunk, err := stream.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if chunk == nil {
			return nil
		}
		if err := callback(chunk); err != nil {
			return err
		}
	}
}

// CollectStreamContent reads a stream and collects all content into a single string.
func CollectStreamContent(stream StreamInterface) (string, error) {
	var content strings.Builder
	err := StreamToCallback(stream, func(chunk *StreamChunk) error {
		content.WriteString(chunk.Text())
		return nil
	})
	return content.String(), err
}

// SliceStream replays a fixed list of chunks. Adapters that decode a whole
// event-stream body up front hand their chunks out through it.
type SliceStream struct {
	mu     sync.Mutex
	chunks []StreamChunk
	pos    int
	closed bool
	closer io.Closer
}

// NewSliceStream wraps chunks; closer, when non-nil, is closed by Close.
func NewSliceStream(chunks []StreamChunk, closer io.Closer) *SliceStream {
	return &SliceStream{chunks: chunks, closer: closer}
}

// Read returns the next chunk.
func (s *SliceStream) Read() (*StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return &c, nil
}

// Close releases the underlying body.
func (s *SliceStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// DecodeFunc turns one raw stream payload into zero or one chunks.
type DecodeFunc func(data string) (*StreamChunk, bool)

// FlushFunc yields a final chunk once the source is exhausted.
type FlushFunc func() (*StreamChunk, bool)

// EventSource yields raw payloads, io.EOF at the end.
type EventSource interface {
	NextData() (string, error)
}

// DecodingStream lazily decodes payloads from an EventSource.
type DecodingStream struct {
	src    EventSource
	decode DecodeFunc
	flush  FlushFunc
	closer io.Closer
	mu     sync.Mutex
	closed bool
	ended  bool
}

// NewDecodingStream builds a stream that pulls from src on every Read.
func NewDecodingStream(src EventSource, decode DecodeFunc, closer io.Closer) *DecodingStream {
	return &DecodingStream{src: src, decode: decode, closer: closer}
}

// WithFlush sets a function asked for one last chunk when src reaches io.EOF.
func (s *DecodingStream) WithFlush(flush FlushFunc) *DecodingStream {
	s.flush = flush
	return s
}

// Read returns the next decodable chunk, skipping payloads that produce none.
func (s *DecodingStream) Read() (*StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	for {
		data, err := s.src.NextData()
		if err != nil {
			if errors.Is(err, io.EOF) && s.flush != nil && !s.ended {
				s.ended = true
				if chunk, ok := s.flush(); ok {
					return chunk, nil
				}
			}
			return nil, err
		}
		if chunk, ok := s.decode(data); ok {
			return chunk, nil
		}
	}
}

// Close releases the underlying body.
func (s *DecodingStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// StreamAggregator helps aggregate streaming responses into a final response.
type StreamAggregator struct {
	Model        string
	Content      strings.Builder
	FinishReason FinishReason
	Usage        *Usage
	ToolCalls    []ToolCall
}

// NewStreamAggregator creates a new stream aggregator.
func NewStreamAggregator() *StreamAggregator {
	return &StreamAggregator{}
}

// AddChunk processes a stream chunk and updates the aggregated state.
func (a *StreamAggregator) AddChunk(chunk *StreamChunk) {
	if a.Model == "" {
		a.Model = chunk.Model
	}
	a.Content.WriteString(chunk.Text())
	if chunk.FinishReason != nil {
		a.FinishReason = *chunk.FinishReason
	}
	if chunk.Usage != nil {
		if a.Usage == nil {
			a.Usage = &Usage{}
		}
		// Providers report cumulative snapshots: input on the first event,
		// output on the last. Keep the largest value seen for each.
		a.Usage.InputTokens = max(a.Usage.InputTokens, chunk.Usage.InputTokens)
		a.Usage.OutputTokens = max(a.Usage.OutputTokens, chunk.Usage.OutputTokens)
		a.Usage.CacheCreationInputTokens = max(a.Usage.CacheCreationInputTokens, chunk.Usage.CacheCreationInputTokens)
		a.Usage.CacheReadInputTokens = max(a.Usage.CacheReadInputTokens, chunk.Usage.CacheReadInputTokens)
		a.Usage.ReasoningTokens = max(a.Usage.ReasoningTokens, chunk.Usage.ReasoningTokens)
	}
	a.ToolCalls = append(a.ToolCalls, chunk.ToolCalls...)
}

// ToResponse converts the aggregated stream into a Response.
func (a *StreamAggregator) ToResponse() *Response {
	resp := &Response{
		Model:        a.Model,
		FinishReason: a.FinishReason,
		Usage:        a.Usage,
		ToolCalls:    a.ToolCalls,
	}
	if resp.FinishReason == "" {
		resp.FinishReason = FinishStop
	}
	if text := a.Content.String(); text != "" {
		resp.Content = []ContentItem{NewTextContent(text)}
	}
	return resp
}

// AggregateStream reads a stream and returns the aggregated response. onChunk,
// when non-nil, sees every chunk first.
func AggregateStream(stream StreamInterface, onChunk StreamCallback) (*Response, error) {
	aggregator := NewStreamAggregator()
	err := StreamToCallback(stream, func(chunk *StreamChunk) error {
		if onChunk != nil {
			if err := onChunk(chunk); err != nil {
				return err
			}
		}
		aggregator.AddChunk(chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return aggregator.ToResponse(), nil
}
