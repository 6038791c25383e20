package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// maxMessageSize bounds one newline-delimited frame.
const maxMessageSize = 4 << 20

// ErrTransportClosed is returned by Send after Close.
var ErrTransportClosed = errors.New("transport is closed")

// Transport carries JSON-RPC frames to and from a server.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
	// Messages yields incoming frames; it is closed when the stream ends.
	Messages() <-chan *Message
	Close() error
}

// streamTransport speaks newline-delimited JSON over a reader and writer.
type streamTransport struct {
	mu     sync.Mutex
	w      io.WriteCloser
	msgs   chan *Message
	done   chan struct{}
	closed bool
	logger *slog.Logger
}

// NewStreamTransport reads frames from r and writes them to w. Close closes w.
func NewStreamTransport(r io.Reader, w io.WriteCloser, logger *slog.Logger) Transport {
	return newStreamTransport(r, w, logger)
}

func newStreamTransport(r io.Reader, w io.WriteCloser, logger *slog.Logger) *streamTransport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &streamTransport{w: w, msgs: make(chan *Message, 16), done: make(chan struct{}), logger: logger}
	go t.read(r)
	return t
}

func (t *streamTransport) read(r io.Reader) {
	defer close(t.done)
	defer close(t.msgs)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			t.logger.Warn("dropping malformed mcp frame", "error", err)
			continue
		}
		t.msgs <- &msg
	}
	if err := scanner.Err(); err != nil {
		t.logger.Warn("mcp stream ended", "error", err)
	}
}

func (t *streamTransport) Send(_ context.Context, msg *Message) error {
	msg.Jsonrpc = "2.0"
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	if _, err := t.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (t *streamTransport) Messages() <-chan *Message {
	return t.msgs
}

func (t *streamTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.w.Close()
}

// stdioTransport runs a server process and talks to it over its stdio.
type stdioTransport struct {
	*streamTransport
	cmd    *exec.Cmd
	exited chan struct{}
}

// StartStdio starts cfg.Command and returns a transport over its stdin and
// stdout. Stderr lines are logged at debug level.
func StartStdio(cfg ServerConfig, logger *slog.Logger) (Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Command, err)
	}

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Debug("mcp server stderr", "line", scanner.Text())
		}
	}()

	t := &stdioTransport{
		streamTransport: newStreamTransport(stdout, stdin, logger),
		cmd:             cmd,
		exited:          make(chan struct{}),
	}
	// Wait closes the pipes, so it runs only after both readers hit EOF.
	go func() {
		<-t.done
		<-stderrDone
		_ = cmd.Wait()
		close(t.exited)
	}()
	return t, nil
}

// Close closes stdin and gives the process a moment to exit before killing it.
func (t *stdioTransport) Close() error {
	err := t.streamTransport.Close()
	select {
	case <-t.exited:
	case <-time.After(2 * time.Second):
		_ = t.cmd.Process.Kill()
		<-t.exited
	}
	return err
}
