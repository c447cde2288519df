package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tzervas/context-mcp/internal/tracing"
)

const (
	// DefaultMaxReadAttempts bounds the response read loop. Every line read
	// from the server's stdout, including blank and unparseable ones,
	// consumes one attempt.
	DefaultMaxReadAttempts = 20

	// stopGracePeriod is how long Stop waits after SIGTERM before killing
	// the process outright.
	stopGracePeriod = 5 * time.Second
)

// Session owns a tool server child process and performs one-request-at-a-time
// exchanges with it over piped standard streams.
type Session struct {
	name        string
	maxAttempts int
	tracer      trace.Tracer
	stderr      io.Writer

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	// mu serializes the full write-then-read exchange; nextID is only
	// touched inside that critical section.
	mu     sync.Mutex
	nextID int64

	stopOnce sync.Once
}

// Option configures a Session before the process is started.
type Option func(*Session)

// WithName sets the logical session name used in spans and diagnostics.
func WithName(name string) Option {
	return func(s *Session) { s.name = name }
}

// WithMaxReadAttempts overrides the response read-loop ceiling.
func WithMaxReadAttempts(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithTracer attaches an OpenTelemetry tracer; each call becomes a client span.
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) { s.tracer = t }
}

// WithStderr forwards the server's stderr to w instead of discarding it.
func WithStderr(w io.Writer) Option {
	return func(s *Session) { s.stderr = w }
}

// Start spawns the server process with piped stdin/stdout/stderr. It returns
// a *StartupError if the executable cannot be launched. No handshake is
// performed; the first exchange happens on the first Call.
func Start(ctx context.Context, command string, args []string, opts ...Option) (*Session, error) {
	s := &Session{
		name:        command,
		maxAttempts: DefaultMaxReadAttempts,
		stderr:      io.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := ctx.Err(); err != nil {
		return nil, &StartupError{Command: command, Err: err}
	}

	cmd := exec.Command(command, args...)
	cmd.Stderr = s.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &StartupError{Command: command, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &StartupError{Command: command, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &StartupError{Command: command, Err: err}
	}

	s.cmd = cmd
	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)
	return s, nil
}

// Call performs a single request/response exchange and returns the response's
// result payload uninterpreted. The internal mutex is held for the entire
// exchange: the server's stdout carries no correlation between requests and
// responses, so a second in-flight request would consume the first one's
// reply. Request ids are strictly increasing and never reused in a session.
func (s *Session) Call(ctx context.Context, method string, params any) (result json.RawMessage, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, span := tracing.StartCallSpan(ctx, s.callTracer(), s.name, method)
	defer func() { tracing.EndSpan(span, err) }()

	if params == nil {
		params = map[string]any{}
	}
	s.nextID++
	req := Request{JSONRPC: Version, ID: s.nextID, Method: method, Params: params}

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	line = append(line, '\n')
	if _, err = s.stdin.Write(line); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	resp, err := s.readResponse(method)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		err = &RemoteError{Method: method, Payload: resp.Error}
		return nil, err
	}
	if resp.Result == nil {
		return json.RawMessage(`{}`), nil
	}
	return resp.Result, nil
}

// CallTool invokes a named tool through the standard tools/call method.
func (s *Session) CallTool(ctx context.Context, tool string, arguments map[string]any) (json.RawMessage, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}
	return s.Call(ctx, "tools/call", toolCallParams{Name: tool, Arguments: arguments})
}

// readResponse reads lines from the server's stdout until one parses as a
// JSON document or the attempt ceiling is exhausted. Blank lines and lines
// that fail to parse are incidental logging and are skipped; each skip still
// consumes an attempt so a dead or babbling server degrades to a timeout.
func (s *Session) readResponse(method string) (*Response, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		raw, _ := s.stdout.ReadString('\n')
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			continue
		}
		var resp Response
		// Non-object documents decode partially or not at all; whatever
		// fields are missing fall through to the empty-result rule.
		_ = json.Unmarshal([]byte(line), &resp)
		return &resp, nil
	}
	return nil, &ResponseTimeoutError{Method: method, Attempts: s.maxAttempts}
}

// Stop terminates the server process and waits for it to exit. It is
// idempotent and never reports failure: cleanup is best-effort so callers can
// defer it unconditionally, including after a failed Call. Stop does not take
// the call mutex: killing the process closes its pipes, which unblocks any
// pending read.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		if s.cmd == nil {
			return
		}
		if s.stdin != nil {
			_ = s.stdin.Close()
		}
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(syscall.SIGTERM)
		}

		done := make(chan struct{})
		go func() {
			_ = s.cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(stopGracePeriod):
			if s.cmd.Process != nil {
				_ = s.cmd.Process.Kill()
			}
			<-done
		}
	})
}

// Name returns the session's logical name.
func (s *Session) Name() string { return s.name }

func (s *Session) callTracer() trace.Tracer {
	if s.tracer == nil {
		return noop.NewTracerProvider().Tracer("ctxbench")
	}
	return s.tracer
}
