// Package dataset supplies context payloads for benchmark runs: a synthetic
// Kubernetes-flavored generator, a JSON-file feeder for fetched release and
// chart data, and an optional fetcher that refreshes the local data directory
// from upstream sources.
package dataset
