// Package rpc implements the line-delimited JSON-RPC transport used to talk
// to a tool server over a child process's standard streams.
//
// A [Session] owns the server process and exposes a single blocking exchange:
//
//	sess, err := rpc.Start(ctx, "context-mcp", []string{"--stdio"})
//	if err != nil {
//		return err
//	}
//	defer sess.Stop()
//
//	result, err := sess.CallTool(ctx, "store_context", payload)
//
// # Single-Flight Discipline
//
// The server's stdout is a plain byte stream with no request/response
// correlation, so the session allows exactly one outstanding request at a
// time. [Session.Call] holds an internal mutex for the full write-then-read
// exchange; concurrent callers serialize automatically. The first parseable
// JSON line after a send is taken as the response to that request; response
// ids are decoded but deliberately not matched.
//
// # Error Taxonomy
//
//   - [StartupError]: the server executable could not be launched.
//   - [ResponseTimeoutError]: the bounded read loop ran out of attempts
//     without seeing a parseable line.
//   - [RemoteError]: the server reported an explicit error payload.
//
// Blank and non-JSON lines on stdout are incidental logging, not errors; they
// are skipped, with each skip consuming one read attempt so that a flood of
// garbage degrades to a timeout instead of a hang.
package rpc
