// Package shell runs commands in a long-lived shell process whose state
// (working directory, environment) persists between commands.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	DefaultTimeout     = 120 * time.Second
	DefaultStderrGrace = 20 * time.Millisecond
	readChunkSize      = 4096
	// exitDrainGrace bounds the wait for stdout still in flight after the
	// shell exits; background children may keep the pipe open.
	exitDrainGrace = 100 * time.Millisecond
)

var (
	ErrSessionNotStarted = errors.New("session has not started")
	ErrTimeout           = errors.New("timed out: bash has not returned in time and must be restarted")
	ErrSessionBusy       = errors.New("session is busy running another command")
	ErrProcessExited     = errors.New("shell process has exited")
)

// State is the lifecycle state of a Session.
type State int

const (
	StateNotStarted State = iota
	StateStarted
)

func (s State) String() string {
	if s == StateStarted {
		return "started"
	}
	return "not_started"
}

// Result is the outcome of one command.
type Result struct {
	Output   string
	Error    string
	ExitCode int
}

// Options configures a Session.
type Options struct {
	// Timeout bounds how long Run waits for a command; zero means DefaultTimeout.
	Timeout time.Duration
	// StderrGrace is how long Run waits for trailing stderr after stdout ends.
	StderrGrace time.Duration
	// Dir is the initial working directory.
	Dir    string
	Env    []string
	Logger *slog.Logger
}

// Session is a persistent shell. Only one command runs at a time.
type Session struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	timedOut bool
	p        *proc
	pending  bytes.Buffer
}

// proc is one running shell process and its pumps.
type proc struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdoutR  io.ReadCloser
	stderrR  io.ReadCloser
	stdout   chan []byte
	stderr   *lockedBuffer
	exited   chan struct{}
	exitCode int
}

func (p *proc) hasExited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// NewSession creates a session; call Start before Run.
func NewSession(opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.StderrGrace <= 0 {
		opts.StderrGrace = DefaultStderrGrace
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		opts:   opts,
		logger: logger.With("component", "shell_session"),
	}
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TimedOut reports whether a previous command timed out.
func (s *Session) TimedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timedOut
}

func shellCommand() *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("cmd.exe", "/q", "/v:on", "/k")
	}
	return exec.Command("bash", "--norc", "--noprofile", "-s")
}

// Start launches the shell process. Starting a started session is a no-op.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStarted {
		return nil
	}

	cmd := shellCommand()
	cmd.Dir = s.opts.Dir
	cmd.Env = append(os.Environ(),
		"PS1=",
		"PS2=",
		"PS4=",
		"PROMPT_COMMAND=",
		"TERM=dumb",
		"BASH_ENV=",
	)
	cmd.Env = append(cmd.Env, s.opts.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return fmt.Errorf("failed to start shell: %w", err)
	}

	p := &proc{
		cmd:     cmd,
		stdin:   stdin,
		stdoutR: stdout,
		stderrR: stderr,
		stdout:  make(chan []byte, 64),
		stderr:  &lockedBuffer{},
		exited:  make(chan struct{}),
	}
	s.p = p
	s.pending.Reset()
	s.timedOut = false
	s.state = StateStarted

	go pumpChunks(stdout, p.stdout)
	go func() { _, _ = io.Copy(p.stderr, stderr) }()
	go func() {
		// Process.Wait leaves the pipes to the pumps, which see EOF once
		// every writer, including orphaned children, is gone.
		state, err := cmd.Process.Wait()
		p.exitCode = -1
		if err == nil {
			p.exitCode = state.ExitCode()
		}
		close(p.exited)
	}()

	if runtime.GOOS != "windows" {
		_, _ = io.WriteString(stdin, "unset HISTFILE\n")
	}

	s.logger.Info("started shell session", "pid", cmd.Process.Pid, "dir", s.opts.Dir)
	return nil
}

// pumpChunks forwards fixed-size reads to out and closes it at EOF.
func pumpChunks(r io.Reader, out chan<- []byte) {
	defer close(out)
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			out <- chunk
		}
		if err != nil {
			return
		}
	}
}

// Stop terminates the shell process and returns the session to NotStarted.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Session) stopLocked() error {
	if s.state == StateNotStarted {
		return nil
	}
	s.state = StateNotStarted
	s.timedOut = false

	p := s.p
	_ = p.stdin.Close()
	var err error
	if !p.hasExited() {
		if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = fmt.Errorf("failed to kill shell: %w", kerr)
		}
	}
	select {
	case <-p.exited:
	case <-time.After(5 * time.Second):
		s.logger.Warn("shell did not exit after kill", "pid", p.cmd.Process.Pid)
	}
	_ = p.stdoutR.Close()
	_ = p.stderrR.Close()
	go func() {
		for range p.stdout {
		}
	}()
	s.logger.Info("stopped shell session", "pid", p.cmd.Process.Pid)
	return err
}

// Alive reports whether the shell process still exists.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStarted {
		return false
	}
	if s.p.hasExited() {
		return false
	}
	ok, err := process.PidExists(int32(s.p.cmd.Process.Pid))
	return err == nil && ok
}

// PID returns the shell process id, or 0 when not started.
func (s *Session) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStarted {
		return 0
	}
	return s.p.cmd.Process.Pid
}

func frame(command, begin, end string) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("%s & echo %s!errorlevel!%s\r\n", command, begin, end)
	}
	// A newline rather than ';' keeps commands ending in '&' valid.
	return fmt.Sprintf("%s\necho '%s'$?'%s'\n", command, begin, end)
}

// Run executes command and waits for it to finish.
func (s *Session) Run(ctx context.Context, command string) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.mu.Unlock()

	if s.state != StateStarted {
		return nil, ErrSessionNotStarted
	}
	if s.timedOut {
		return nil, ErrTimeout
	}

	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	begin := ",,,,bash-command-exit-" + nonce + "-"
	end := "-banner,,,,"

	p := s.p
	p.stderr.Reset()
	if _, err := io.WriteString(p.stdin, frame(command, begin, end)); err != nil {
		s.logger.Error("failed to write command", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProcessExited, err)
	}
	s.logger.Debug("running command", "command", command)

	timer := time.NewTimer(s.opts.Timeout)
	defer timer.Stop()

	for {
		if out, code, ok := s.scan(begin, end); ok {
			return &Result{
				Output:   trimNewlines(out),
				Error:    trimNewlines(s.drainStderr()),
				ExitCode: code,
			}, nil
		}

		select {
		case chunk, ok := <-p.stdout:
			if !ok {
				return s.collectExit(), nil
			}
			s.pending.Write(chunk)
		case <-p.exited:
			s.drainStdout()
			return s.collectExit(), nil
		case <-timer.C:
			s.timedOut = true
			s.logger.Warn("command timed out", "command", command, "timeout", s.opts.Timeout)
			return nil, ErrTimeout
		case <-ctx.Done():
			s.timedOut = true
			return nil, ctx.Err()
		}
	}
}

// scan looks for the framed exit code in the pending stdout.
func (s *Session) scan(begin, end string) (string, int, bool) {
	data := s.pending.Bytes()
	i := bytes.Index(data, []byte(begin))
	if i < 0 {
		return "", 0, false
	}
	j := bytes.Index(data[i+len(begin):], []byte(end))
	if j < 0 {
		return "", 0, false
	}
	output := string(data[:i])
	codeText := strings.TrimSpace(string(data[i+len(begin) : i+len(begin)+j]))
	code, err := strconv.Atoi(codeText)
	if err != nil {
		code = -1
	}
	rest := data[i+len(begin)+j+len(end):]
	rest = bytes.TrimLeft(rest, "\r\n")
	remaining := append([]byte(nil), rest...)
	s.pending.Reset()
	s.pending.Write(remaining)
	return output, code, true
}

// drainStdout takes the output the pump still holds after the shell exited,
// until the pipe closes or stays quiet for exitDrainGrace.
func (s *Session) drainStdout() {
	for {
		select {
		case chunk, ok := <-s.p.stdout:
			if !ok {
				return
			}
			s.pending.Write(chunk)
		case <-time.After(exitDrainGrace):
			return
		}
	}
}

// collectExit handles a shell that exited mid-command.
func (s *Session) collectExit() *Result {
	p := s.p
	<-p.exited
	res := &Result{
		Output:   trimNewlines(s.pending.String()),
		Error:    trimNewlines(p.stderr.String()),
		ExitCode: p.exitCode,
	}
	s.pending.Reset()
	_ = p.stdin.Close()
	_ = p.stdoutR.Close()
	_ = p.stderrR.Close()
	go func() {
		for range p.stdout {
		}
	}()
	s.state = StateNotStarted
	s.logger.Info("shell exited during command", "exit_code", p.exitCode)
	return res
}

func (s *Session) drainStderr() string {
	time.Sleep(s.opts.StderrGrace)
	out := s.p.stderr.String()
	s.p.stderr.Reset()
	return out
}

func trimNewlines(s string) string {
	return strings.TrimRight(s, "\r\n")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
