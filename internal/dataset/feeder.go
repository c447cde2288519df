package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrExhausted is returned when a feeder has no more payloads.
var ErrExhausted = fmt.Errorf("feeder exhausted: no more payloads available")

// Feeder hands out payloads in deterministic order and is safe for concurrent
// use.
type Feeder struct {
	payloads []Payload
	index    int
	mu       sync.Mutex
}

// NewFeeder creates a feeder over a fixed payload set.
func NewFeeder(payloads []Payload) *Feeder {
	return &Feeder{payloads: payloads}
}

// Next returns the next payload. Returns ErrExhausted when all payloads have
// been consumed.
func (f *Feeder) Next(ctx context.Context) (Payload, error) {
	select {
	case <-ctx.Done():
		return Payload{}, ctx.Err()
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index >= len(f.payloads) {
		return Payload{}, ErrExhausted
	}

	payload := f.payloads[f.index]
	f.index++
	return payload, nil
}

// Len returns the total number of payloads.
func (f *Feeder) Len() int {
	return len(f.payloads)
}

// LoadFile converts a dataset file into store payloads. The file must hold a
// JSON array of release or chart objects; each object expands into one
// overview payload plus per-component or dependency payloads.
func LoadFile(path string) ([]Payload, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset file: %w", err)
	}
	defer file.Close()

	var records []map[string]interface{}
	if err := json.NewDecoder(file).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode dataset file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset file %s contains an empty array", filepath.Base(path))
	}

	var payloads []Payload
	for i, record := range records {
		converted, err := convertRecord(record)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		payloads = append(payloads, converted...)
	}
	return payloads, nil
}

// LoadDir loads every known dataset file under dir. Missing files are skipped
// so a partially fetched directory still yields payloads.
func LoadDir(dir string) ([]Payload, error) {
	var payloads []Payload
	for _, name := range []string{"k8s-releases.json", "helm-charts.json"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		payloads = append(payloads, loaded...)
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("no dataset files found in %s", dir)
	}
	return payloads, nil
}

func convertRecord(record map[string]interface{}) ([]Payload, error) {
	switch record["type"] {
	case "kubernetes-release":
		return convertRelease(record), nil
	case "helm-chart":
		return convertChart(record), nil
	default:
		return nil, fmt.Errorf("unknown record type %v", record["type"])
	}
}

func convertRelease(release map[string]interface{}) []Payload {
	version := stringField(release, "version")

	overview := mustJSON(map[string]interface{}{
		"type":             "kubernetes-release",
		"version":          version,
		"release_notes":    release["release_notes"],
		"security_updates": release["security_updates"],
	})
	payloads := []Payload{{
		Content:    overview,
		Domain:     "Kubernetes",
		Tags:       []string{"kubernetes", "release", version},
		Importance: 0.95,
		Source:     "kubernetes-official",
	}}

	if components, ok := release["components"].(map[string]interface{}); ok {
		names := make([]string, 0, len(components))
		for component := range components {
			names = append(names, component)
		}
		sort.Strings(names)
		for _, component := range names {
			payloads = append(payloads, Payload{
				Content: mustJSON(map[string]interface{}{
					"component": component,
					"version":   version,
					"details":   components[component],
				}),
				Domain:     "Kubernetes",
				Tags:       []string{"kubernetes", "component", component, version},
				Importance: 0.90,
				Source:     "kubernetes-official",
			})
		}
	}
	return payloads
}

func convertChart(chart map[string]interface{}) []Payload {
	name := stringField(chart, "name")
	version := stringField(chart, "version")

	payloads := []Payload{{
		Content: mustJSON(map[string]interface{}{
			"type":    "helm-chart",
			"name":    name,
			"version": version,
			"repo":    chart["repo"],
			"values":  chart["values"],
		}),
		Domain:     "DevOps",
		Tags:       []string{"helm", "chart", name, version},
		Importance: 0.85,
		Source:     "helm-artifact-hub",
	}}

	if deps, ok := chart["dependencies"].([]interface{}); ok && len(deps) > 0 {
		payloads = append(payloads, Payload{
			Content: mustJSON(map[string]interface{}{
				"chart":        name,
				"version":      version,
				"dependencies": deps,
			}),
			Domain:     "DevOps",
			Tags:       []string{"helm", "dependencies", name},
			Importance: 0.80,
			Source:     "helm-artifact-hub",
		})
	}
	return payloads
}

func stringField(record map[string]interface{}, key string) string {
	if val, ok := record[key].(string); ok {
		return val
	}
	return ""
}

func mustJSON(value map[string]interface{}) string {
	data, err := json.Marshal(value)
	if err != nil {
		// Marshal of map[string]interface{} built from decoded JSON cannot fail.
		panic(err)
	}
	return string(data)
}
