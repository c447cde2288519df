package dataset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGeneratePayloadShape(t *testing.T) {
	payloads := Generate()
	if len(payloads) == 0 {
		t.Fatal("Generate() returned no payloads")
	}

	// 4 releases, 3 patch security digests, 4 components, 5 practices.
	if len(payloads) != 16 {
		t.Errorf("Generate() produced %d payloads, want 16", len(payloads))
	}

	for i, p := range payloads {
		if p.Content == "" {
			t.Errorf("payload %d has empty content", i)
		}
		if p.Domain == "" {
			t.Errorf("payload %d has empty domain", i)
		}
		if len(p.Tags) == 0 {
			t.Errorf("payload %d has no tags", i)
		}
		if p.Importance <= 0 || p.Importance > 1 {
			t.Errorf("payload %d importance = %g, want (0, 1]", i, p.Importance)
		}
	}
}

func TestPayloadArguments(t *testing.T) {
	p := Payload{
		Content:    "body",
		Domain:     "Testing",
		Tags:       []string{"a", "b"},
		Importance: 0.5,
		Source:     "benchmark",
	}
	args := p.Arguments()
	if args["content"] != "body" || args["domain"] != "Testing" {
		t.Errorf("unexpected arguments: %v", args)
	}
	if args["importance"] != 0.5 {
		t.Errorf("importance = %v, want 0.5", args["importance"])
	}
}

func TestFeederRoundTrip(t *testing.T) {
	payloads := []Payload{
		{Content: "one"},
		{Content: "two"},
	}
	feeder := NewFeeder(payloads)

	if feeder.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", feeder.Len())
	}

	ctx := context.Background()
	for i, want := range []string{"one", "two"} {
		got, err := feeder.Next(ctx)
		if err != nil {
			t.Fatalf("Next() #%d error = %v", i, err)
		}
		if got.Content != want {
			t.Errorf("Next() #%d content = %q, want %q", i, got.Content, want)
		}
	}

	if _, err := feeder.Next(ctx); !errors.Is(err, ErrExhausted) {
		t.Errorf("Next() after exhaustion error = %v, want ErrExhausted", err)
	}
}

func TestFeederHonorsContext(t *testing.T) {
	feeder := NewFeeder([]Payload{{Content: "one"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := feeder.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}

func TestLoadFileReleases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "k8s-releases.json")
	contents := `[
  {
    "type": "kubernetes-release",
    "version": "v1.31.0",
    "release_notes": ["note"],
    "security_updates": [],
    "components": {
      "etcd": {"version": "v1.31.0"},
      "kubelet": {"version": "v1.31.0"}
    }
  }
]`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	payloads, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	// One overview plus two components.
	if len(payloads) != 3 {
		t.Fatalf("LoadFile() produced %d payloads, want 3", len(payloads))
	}
	if payloads[0].Domain != "Kubernetes" || payloads[0].Importance != 0.95 {
		t.Errorf("overview payload = %+v", payloads[0])
	}
	// Components come back sorted by name.
	if payloads[1].Tags[2] != "etcd" || payloads[2].Tags[2] != "kubelet" {
		t.Errorf("component order = %q, %q", payloads[1].Tags[2], payloads[2].Tags[2])
	}
}

func TestLoadFileCharts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "helm-charts.json")
	contents := `[
  {
    "type": "helm-chart",
    "name": "prometheus",
    "version": "57.0.0",
    "repo": "prometheus-community",
    "values": {"replicas": 2},
    "dependencies": [{"name": "kube-state-metrics"}]
  }
]`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	payloads, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	// One overview plus one dependencies payload.
	if len(payloads) != 2 {
		t.Fatalf("LoadFile() produced %d payloads, want 2", len(payloads))
	}
	if payloads[0].Domain != "DevOps" || payloads[0].Importance != 0.85 {
		t.Errorf("overview payload = %+v", payloads[0])
	}
	if payloads[1].Importance != 0.80 {
		t.Errorf("dependencies payload = %+v", payloads[1])
	}
}

func TestLoadFileRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`[{"type":"mystery"}]`), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unknown record type")
	}
}

func TestLoadDirSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "helm-charts.json")
	contents := `[{"type":"helm-chart","name":"redis","version":"17.11.3","repo":"bitnami"}]`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	payloads, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(payloads) != 1 {
		t.Errorf("LoadDir() produced %d payloads, want 1", len(payloads))
	}

	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Error("expected error for empty data dir")
	}
}

func TestFetcherRefresh(t *testing.T) {
	releases := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"tag_name":"v1.31.0","published_at":"2024-08-15T00:00:00Z","html_url":"https://example.com"}]`))
	}))
	defer releases.Close()

	charts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"packages":[{"name":"prometheus","version":"57.0.0","repository":{"name":"prometheus-community"}}]}`))
	}))
	defer charts.Close()

	dir := t.TempDir()
	fetcher := NewFetcher(dir)
	fetcher.releasesURL = releases.URL
	fetcher.chartsURL = charts.URL

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fetcher.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	payloads, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() after Refresh() error = %v", err)
	}
	// One release expands into an overview plus six components; one chart has
	// no dependencies so it stays a single payload.
	if len(payloads) != 8 {
		t.Errorf("LoadDir() produced %d payloads, want 8", len(payloads))
	}

	if _, err := os.Stat(filepath.Join(dir, "data-summary.json")); err != nil {
		t.Errorf("data-summary.json missing: %v", err)
	}
}

func TestFetcherRefreshUpstreamFailure(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	fetcher := NewFetcher(t.TempDir())
	fetcher.releasesURL = failing.URL
	fetcher.chartsURL = failing.URL

	if err := fetcher.Refresh(context.Background()); err == nil {
		t.Fatal("expected error when upstream is unavailable")
	}
}
