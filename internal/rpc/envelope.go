package rpc

import "encoding/json"

// Version is the protocol version marker sent with every request.
const Version = "2.0"

// Request is a JSON-RPC 2.0 request, serialized as a single line.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// Response is a JSON-RPC 2.0 response line. Exactly one of Result or Error is
// populated by a well-behaved server; a response carrying neither decodes with
// both nil and is treated as an empty result.
type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// toolCallParams is the params shape for the tools/call method.
type toolCallParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}
