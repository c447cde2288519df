// Package extract pulls structured values out of MCP tool results. Tool
// responses wrap their payload in a content list whose first element is
// usually a text block containing JSON; helpers here combine JSONPath lookups
// with a regex fallback for loosely formatted text.
package extract

import (
	"encoding/json"
	"regexp"

	"github.com/tidwall/gjson"
)

// idPattern matches the base64 context id embedded in a store_context text
// response.
var idPattern = regexp.MustCompile(`"id":\s*"([A-Za-z0-9+/=]+)"`)

// TextContent returns the first text block of a tool result.
func TextContent(result json.RawMessage) (string, bool) {
	content := gjson.GetBytes(result, "content.0")
	if !content.Exists() || content.Get("type").String() != "text" {
		return "", false
	}
	return content.Get("text").String(), true
}

// ContextID extracts the stored context id from a store_context result.
func ContextID(result json.RawMessage) (string, bool) {
	text, ok := TextContent(result)
	if !ok {
		return "", false
	}
	if m := idPattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// ContentCount returns the number of content blocks in a tool result.
func ContentCount(result json.RawMessage) int {
	return int(gjson.GetBytes(result, "content.#").Int())
}

// StorageStats holds the fields of interest from a get_storage_stats response.
type StorageStats struct {
	CacheCapacity int64 `json:"cache_capacity"`
	MemoryCount   int64 `json:"memory_count"`
	DiskCount     int64 `json:"disk_count"`
}

// ParseStorageStats parses the JSON document embedded in a get_storage_stats
// text response. Returns false when the text is not a JSON object.
func ParseStorageStats(result json.RawMessage) (StorageStats, bool) {
	text, ok := TextContent(result)
	if !ok {
		return StorageStats{}, false
	}
	parsed := gjson.Parse(text)
	if !parsed.IsObject() {
		return StorageStats{}, false
	}
	return StorageStats{
		CacheCapacity: parsed.Get("cache_capacity").Int(),
		MemoryCount:   parsed.Get("memory_count").Int(),
		DiskCount:     parsed.Get("disk_count").Int(),
	}, true
}
