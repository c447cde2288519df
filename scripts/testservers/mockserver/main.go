// Command mockserver is a line-delimited JSON-RPC context server used for
// local ctxbench runs. It keeps contexts in memory and answers the same tool
// set a real context server exposes. The --noise flag interleaves plain log
// lines on stdout so clients must skip non-JSON output.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type storedContext struct {
	ID         string
	Content    string
	Domain     string
	Tags       []string
	Importance float64
	Status     string
	StoredAt   time.Time
}

type server struct {
	mu       sync.Mutex
	contexts map[string]*storedContext
	nextID   int
	capacity int
	latency  time.Duration
	noise    bool
	failTool string
	out      *bufio.Writer
}

func main() {
	latency := flag.Duration("latency", 0, "Artificial delay before each response")
	noise := flag.Bool("noise", false, "Interleave plain log lines on stdout")
	capacity := flag.Int("capacity", 1000, "Reported cache capacity")
	failTool := flag.String("fail-tool", "", "Tool name that always returns a JSON-RPC error")
	flag.Parse()

	srv := &server{
		contexts: make(map[string]*storedContext),
		capacity: *capacity,
		latency:  *latency,
		noise:    *noise,
		failTool: *failTool,
		out:      bufio.NewWriter(os.Stdout),
	}
	if err := srv.serve(os.Stdin); err != nil {
		log.Fatalf("mockserver: %v", err)
	}
}

func (s *server) serve(in *os.File) error {
	if s.noise {
		s.writeLine("mockserver starting up")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.writeLine(fmt.Sprintf("mockserver: skipping unparseable input: %v", err))
			continue
		}

		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		if s.noise && rand.Intn(4) == 0 {
			s.writeLine(fmt.Sprintf("mockserver: handling %s", req.Method))
		}
		s.handle(req)
	}
	return scanner.Err()
}

func (s *server) handle(req request) {
	if req.Method != "tools/call" {
		s.respondError(req.ID, -32601, fmt.Sprintf("method %q not found", req.Method))
		return
	}

	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.respondError(req.ID, -32602, fmt.Sprintf("invalid params: %v", err))
		return
	}
	if params.Name == s.failTool {
		s.respondError(req.ID, -32000, fmt.Sprintf("tool %q failed", params.Name))
		return
	}

	switch params.Name {
	case "store_context":
		s.respondText(req.ID, s.storeContext(params.Arguments))
	case "query_contexts":
		s.respondText(req.ID, s.queryContexts(params.Arguments))
	case "retrieve_contexts":
		s.respondContent(req.ID, s.retrieveContexts(params.Arguments))
	case "update_screening":
		s.respondText(req.ID, s.updateScreening(params.Arguments))
	case "get_temporal_stats":
		s.respondText(req.ID, s.temporalStats())
	case "get_storage_stats":
		s.respondText(req.ID, s.storageStats())
	case "cleanup_expired":
		s.respondText(req.ID, s.cleanupExpired())
	default:
		s.respondError(req.ID, -32602, fmt.Sprintf("unknown tool %q", params.Name))
	}
}

func (s *server) storeContext(args map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := fmt.Sprintf("bW9jaw%06d", s.nextID)
	ctx := &storedContext{
		ID:       id,
		Status:   "Unscreened",
		StoredAt: time.Now(),
	}
	if v, ok := args["content"].(string); ok {
		ctx.Content = v
	}
	if v, ok := args["domain"].(string); ok {
		ctx.Domain = v
	}
	if v, ok := args["importance"].(float64); ok {
		ctx.Importance = v
	}
	if raw, ok := args["tags"].([]any); ok {
		for _, t := range raw {
			if tag, ok := t.(string); ok {
				ctx.Tags = append(ctx.Tags, tag)
			}
		}
	}
	s.contexts[id] = ctx
	return fmt.Sprintf("Stored context {\"id\": \"%s\", \"domain\": \"%s\"}", id, ctx.Domain)
}

func (s *server) queryContexts(args map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	domain, _ := args["domain"].(string)
	var tags []string
	if raw, ok := args["tags"].([]any); ok {
		for _, t := range raw {
			if tag, ok := t.(string); ok {
				tags = append(tags, tag)
			}
		}
	}

	limit := len(s.contexts)
	if v, ok := args["limit"].(float64); ok && int(v) > 0 {
		limit = int(v)
	}

	matched := 0
	for _, ctx := range s.contexts {
		if domain != "" && ctx.Domain != domain {
			continue
		}
		if len(tags) > 0 && !hasAnyTag(ctx.Tags, tags) {
			continue
		}
		matched++
		if matched >= limit {
			break
		}
	}
	return fmt.Sprintf("Found %d matching contexts", matched)
}

func (s *server) retrieveContexts(args map[string]any) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	max := 10
	if v, ok := args["max_results"].(float64); ok && int(v) > 0 {
		max = int(v)
	}
	query, _ := args["text"].(string)

	var results []string
	for _, ctx := range s.contexts {
		if len(results) >= max {
			break
		}
		if query == "" || containsFold(ctx.Content, query) || containsFold(ctx.Domain, query) {
			results = append(results, ctx.Content)
		}
	}
	return results
}

func (s *server) updateScreening(args map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := args["id"].(string)
	status, _ := args["status"].(string)
	ctx, ok := s.contexts[id]
	if !ok {
		return fmt.Sprintf("Context %s not found", id)
	}
	ctx.Status = status
	return fmt.Sprintf("Updated screening for %s to %s", id, status)
}

func (s *server) temporalStats() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest time.Time
	for _, ctx := range s.contexts {
		if oldest.IsZero() || ctx.StoredAt.Before(oldest) {
			oldest = ctx.StoredAt
		}
	}
	return fmt.Sprintf("Temporal stats: %d contexts, oldest stored %s", len(s.contexts), oldest.Format(time.RFC3339))
}

func (s *server) storageStats() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The stats text must be a bare JSON object; clients parse it directly.
	stats := map[string]any{
		"cache_capacity": s.capacity,
		"memory_count":   len(s.contexts),
		"disk_count":     len(s.contexts),
	}
	data, err := json.Marshal(stats)
	if err != nil {
		log.Fatalf("mockserver: marshal storage stats: %v", err)
	}
	return string(data)
}

func (s *server) cleanupExpired() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-24 * time.Hour)
	removed := 0
	for id, ctx := range s.contexts {
		if ctx.StoredAt.Before(cutoff) {
			delete(s.contexts, id)
			removed++
		}
	}
	return fmt.Sprintf("Cleaned up %d expired contexts", removed)
}

func (s *server) respondText(id any, text string) {
	s.respondContent(id, []string{text})
}

func (s *server) respondContent(id any, texts []string) {
	content := make([]map[string]any, 0, len(texts))
	for _, text := range texts {
		content = append(content, map[string]any{"type": "text", "text": text})
	}
	s.writeJSON(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  map[string]any{"content": content},
	})
}

func (s *server) respondError(id any, code int, message string) {
	s.writeJSON(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]any{"code": code, "message": message},
	})
}

func (s *server) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Fatalf("mockserver: marshal response: %v", err)
	}
	s.writeLine(string(data))
}

func (s *server) writeLine(line string) {
	fmt.Fprintln(s.out, line)
	if err := s.out.Flush(); err != nil {
		log.Fatalf("mockserver: write stdout: %v", err)
	}
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
