package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"testing"
	"time"
)

// pipeSession wires a Session to in-memory pipes so tests can play the role
// of the server process. The returned reader carries request lines; the
// writer feeds response lines.
func pipeSession(maxAttempts int) (*Session, *bufio.Reader, *io.PipeWriter) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	s := &Session{
		name:        "fake",
		maxAttempts: maxAttempts,
		stderr:      io.Discard,
		stdin:       reqW,
		stdout:      bufio.NewReader(respR),
	}
	return s, bufio.NewReader(reqR), respW
}

func readRequest(t *testing.T, r *bufio.Reader) Request {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		t.Fatalf("decode request %q: %v", line, err)
	}
	return req
}

func TestCallReturnsOwnResponse(t *testing.T) {
	s, reqs, resps := pipeSession(DefaultMaxReadAttempts)

	// Echo the method back inside the result so a cross-talk bug between
	// sequential calls is detectable.
	go func() {
		for i := 0; i < 2; i++ {
			req := readRequest(t, reqs)
			fmt.Fprintf(resps, `{"id":%d,"result":{"echo":%q}}`+"\n", req.ID, req.Method)
		}
	}()

	for _, method := range []string{"store_context", "query_contexts"} {
		result, err := s.Call(context.Background(), method, nil)
		if err != nil {
			t.Fatalf("Call(%s): %v", method, err)
		}
		var body struct {
			Echo string `json:"echo"`
		}
		if err := json.Unmarshal(result, &body); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if body.Echo != method {
			t.Errorf("call %q received response for %q", method, body.Echo)
		}
	}
}

func TestRequestIDsStrictlyIncrease(t *testing.T) {
	s, reqs, resps := pipeSession(DefaultMaxReadAttempts)

	const calls = 5
	ids := make(chan int64, calls)
	go func() {
		for i := 0; i < calls; i++ {
			req := readRequest(t, reqs)
			ids <- req.ID
			fmt.Fprintf(resps, `{"id":%d,"result":{}}`+"\n", req.ID)
		}
	}()

	for i := 0; i < calls; i++ {
		if _, err := s.Call(context.Background(), "query_contexts", nil); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	var prev int64
	for i := 0; i < calls; i++ {
		id := <-ids
		if id <= prev {
			t.Errorf("request id %d not strictly greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestCallSkipsBlankAndGarbageLines(t *testing.T) {
	s, reqs, resps := pipeSession(DefaultMaxReadAttempts)

	go func() {
		req := readRequest(t, reqs)
		for i := 0; i < 5; i++ {
			fmt.Fprintln(resps)
		}
		fmt.Fprintln(resps, "[server] warming caches...")
		fmt.Fprintln(resps, "not json either")
		fmt.Fprintf(resps, `{"id":%d,"result":{"ok":true}}`+"\n", req.ID)
	}()

	result, err := s.Call(context.Background(), "get_storage_stats", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(result) != `{"ok":true}` {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestCallTimesOutAfterAttemptCeiling(t *testing.T) {
	const attempts = 10
	s, reqs, resps := pipeSession(attempts)

	go func() {
		readRequest(t, reqs)
		for i := 0; i < attempts; i++ {
			fmt.Fprintln(resps, "log line, never a response")
		}
		resps.Close()
	}()

	_, err := s.Call(context.Background(), "retrieve_contexts", nil)
	var timeoutErr *ResponseTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected ResponseTimeoutError, got %v", err)
	}
	if timeoutErr.Attempts != attempts {
		t.Errorf("expected %d attempts reported, got %d", attempts, timeoutErr.Attempts)
	}
}

func TestCallRemoteErrorKeepsSessionUsable(t *testing.T) {
	s, reqs, resps := pipeSession(DefaultMaxReadAttempts)

	go func() {
		req := readRequest(t, reqs)
		fmt.Fprintf(resps, `{"id":%d,"error":{"code":-32000,"message":"boom"}}`+"\n", req.ID)
		req = readRequest(t, reqs)
		fmt.Fprintf(resps, `{"id":%d,"result":{"ok":true}}`+"\n", req.ID)
	}()

	_, err := s.Call(context.Background(), "store_context", nil)
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if string(remoteErr.Payload) != `{"code":-32000,"message":"boom"}` {
		t.Errorf("expected verbatim error payload, got %s", remoteErr.Payload)
	}

	// The error is non-fatal: the next call on the same session succeeds.
	if _, err := s.Call(context.Background(), "store_context", nil); err != nil {
		t.Fatalf("call after RemoteError: %v", err)
	}
}

func TestCallEmptyResponseYieldsEmptyResult(t *testing.T) {
	s, reqs, resps := pipeSession(DefaultMaxReadAttempts)

	go func() {
		req := readRequest(t, reqs)
		fmt.Fprintf(resps, `{"id":%d}`+"\n", req.ID)
	}()

	result, err := s.Call(context.Background(), "cleanup_expired", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(result) != `{}` {
		t.Errorf("expected empty result object, got %s", result)
	}
}

func TestCallToolWrapsToolsCall(t *testing.T) {
	s, reqs, resps := pipeSession(DefaultMaxReadAttempts)

	got := make(chan Request, 1)
	go func() {
		req := readRequest(t, reqs)
		got <- req
		fmt.Fprintf(resps, `{"id":%d,"result":{}}`+"\n", req.ID)
	}()

	if _, err := s.CallTool(context.Background(), "store_context", map[string]any{"domain": "Testing"}); err != nil {
		t.Fatalf("CallTool: %v", err)
	}

	req := <-got
	if req.Method != "tools/call" {
		t.Errorf("expected tools/call method, got %q", req.Method)
	}
	params, ok := req.Params.(map[string]any)
	if !ok {
		t.Fatalf("unexpected params type %T", req.Params)
	}
	if params["name"] != "store_context" {
		t.Errorf("expected tool name store_context, got %v", params["name"])
	}
	args, ok := params["arguments"].(map[string]any)
	if !ok || args["domain"] != "Testing" {
		t.Errorf("unexpected arguments: %v", params["arguments"])
	}
}

func TestConcurrentCallersSerialize(t *testing.T) {
	s, reqs, resps := pipeSession(DefaultMaxReadAttempts)

	const callers = 8
	go func() {
		for i := 0; i < callers; i++ {
			req := readRequest(t, reqs)
			fmt.Fprintf(resps, `{"id":%d,"result":{"echo":%q}}`+"\n", req.ID, req.Method)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		method := fmt.Sprintf("op-%d", i)
		go func() {
			defer wg.Done()
			result, err := s.Call(context.Background(), method, nil)
			if err != nil {
				t.Errorf("Call(%s): %v", method, err)
				return
			}
			var body struct {
				Echo string `json:"echo"`
			}
			if err := json.Unmarshal(result, &body); err != nil {
				t.Errorf("decode result: %v", err)
				return
			}
			if body.Echo != method {
				t.Errorf("caller %q received response for %q", method, body.Echo)
			}
		}()
	}
	wg.Wait()
}

func TestStartFailure(t *testing.T) {
	_, err := Start(context.Background(), "/nonexistent/ctxbench-no-such-binary", nil)
	var startErr *StartupError
	if !errors.As(err, &startErr) {
		t.Fatalf("expected StartupError, got %v", err)
	}
}

func TestStopUnblocksPendingCall(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	// A silent but alive server never feeds the read loop, so the attempt
	// ceiling alone cannot end the call. Stop kills the process, the stdout
	// pipe hits EOF, and the drained attempts surface as a timeout.
	s, err := Start(context.Background(), "sleep", []string{"60"}, WithMaxReadAttempts(10))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, callErr := s.Call(context.Background(), "get_temporal_stats", nil)
		errCh <- callErr
	}()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	select {
	case callErr := <-errCh:
		var timeoutErr *ResponseTimeoutError
		if !errors.As(callErr, &timeoutErr) {
			t.Fatalf("expected ResponseTimeoutError after Stop, got %v", callErr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Call still blocked after Stop")
	}
}

func TestSessionAgainstRealProcess(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	// cat echoes each request line back: a valid JSON document with neither
	// result nor error, so Call returns the empty result object.
	s, err := Start(context.Background(), "cat", nil, WithName("echo"), WithMaxReadAttempts(10))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	result, err := s.Call(context.Background(), "query_contexts", map[string]any{"limit": 5})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(result) != `{}` {
		t.Errorf("expected empty result from echo server, got %s", result)
	}

	s.Stop()
	s.Stop() // idempotent
}
