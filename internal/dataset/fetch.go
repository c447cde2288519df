package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	k8sReleasesURL  = "https://api.github.com/repos/kubernetes/kubernetes/releases?per_page=5"
	artifactHubURL  = "https://artifacthub.io/api/v1/packages/search?kind=0&limit=10&sort=relevance&ts_query_web=prometheus"
	fetchLockName   = ".fetch.lock"
	maxResponseSize = 8 << 20
)

// Fetcher refreshes the local dataset directory from upstream sources. A file
// lock on the data directory keeps concurrent runs from clobbering each
// other's downloads.
type Fetcher struct {
	client      *http.Client
	dataDir     string
	releasesURL string
	chartsURL   string
}

// NewFetcher creates a Fetcher writing into dataDir.
func NewFetcher(dataDir string) *Fetcher {
	return &Fetcher{
		client:      &http.Client{Timeout: 30 * time.Second},
		dataDir:     dataDir,
		releasesURL: k8sReleasesURL,
		chartsURL:   artifactHubURL,
	}
}

// Refresh downloads release and chart metadata and rewrites the dataset files.
// Callers treat an error as a degraded run, not a fatal one; the synthetic
// generator covers for missing files.
func (f *Fetcher) Refresh(ctx context.Context) error {
	if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	lock := flock.New(filepath.Join(f.dataDir, fetchLockName))
	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return fmt.Errorf("data dir %s is locked by another run", f.dataDir)
	}
	defer lock.Unlock()

	releases, err := f.fetchKubernetesReleases(ctx)
	if err != nil {
		return fmt.Errorf("fetch kubernetes releases: %w", err)
	}
	charts, err := f.fetchHelmCharts(ctx)
	if err != nil {
		return fmt.Errorf("fetch helm charts: %w", err)
	}

	if err := f.writeFile("k8s-releases.json", releases); err != nil {
		return err
	}
	if err := f.writeFile("helm-charts.json", charts); err != nil {
		return err
	}

	summary := map[string]interface{}{
		"fetched_at":   time.Now().Format(time.RFC3339),
		"k8s_releases": len(releases),
		"helm_charts":  len(charts),
		"total_items":  len(releases) + len(charts),
	}
	return f.writeFile("data-summary.json", summary)
}

func (f *Fetcher) fetchKubernetesReleases(ctx context.Context) ([]map[string]interface{}, error) {
	var ghReleases []struct {
		TagName     string `json:"tag_name"`
		PublishedAt string `json:"published_at"`
		HTMLURL     string `json:"html_url"`
		Body        string `json:"body"`
	}
	if err := f.getJSON(ctx, f.releasesURL, &ghReleases); err != nil {
		return nil, err
	}
	if len(ghReleases) == 0 {
		return nil, fmt.Errorf("no releases returned")
	}

	releases := make([]map[string]interface{}, 0, len(ghReleases))
	for _, rel := range ghReleases {
		releases = append(releases, map[string]interface{}{
			"type":    "kubernetes-release",
			"version": rel.TagName,
			"date":    rel.PublishedAt,
			"url":     rel.HTMLURL,
			"release_notes": []string{
				fmt.Sprintf("Release %s published %s", rel.TagName, rel.PublishedAt),
			},
			"security_updates": []interface{}{},
			"components":       componentDetails(rel.TagName),
		})
	}
	return releases, nil
}

func (f *Fetcher) fetchHelmCharts(ctx context.Context) ([]map[string]interface{}, error) {
	var result struct {
		Packages []struct {
			Name       string `json:"name"`
			Version    string `json:"version"`
			Repository struct {
				Name string `json:"name"`
			} `json:"repository"`
		} `json:"packages"`
	}
	if err := f.getJSON(ctx, f.chartsURL, &result); err != nil {
		return nil, err
	}
	if len(result.Packages) == 0 {
		return nil, fmt.Errorf("no packages returned")
	}

	charts := make([]map[string]interface{}, 0, len(result.Packages))
	for _, pkg := range result.Packages {
		charts = append(charts, map[string]interface{}{
			"type":         "helm-chart",
			"name":         pkg.Name,
			"version":      pkg.Version,
			"repo":         pkg.Repository.Name,
			"values":       map[string]interface{}{},
			"dependencies": []interface{}{},
		})
	}
	return charts, nil
}

func (f *Fetcher) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (f *Fetcher) writeFile(name string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(f.dataDir, name)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// componentDetails fills in control plane component descriptions for a
// release. The upstream API does not break releases down by component, so the
// fetched dataset reuses a fixed component inventory keyed to the version.
func componentDetails(version string) map[string]interface{} {
	components := map[string]string{
		"api-server":         "Exposes the cluster API and handles all requests",
		"etcd":               "Backing key-value store for cluster state",
		"kubelet":            "Node agent keeping pod containers running",
		"controller-manager": "Runs the core reconciliation control loops",
		"kube-scheduler":     "Assigns pods to nodes",
		"kube-proxy":         "Programs node-level service networking rules",
	}
	details := make(map[string]interface{}, len(components))
	for name, description := range components {
		details[name] = map[string]interface{}{
			"version":     version,
			"description": description,
		}
	}
	return details
}
