package dataset

import (
	"fmt"
	"strings"
)

// Payload is a single store_context argument set.
type Payload struct {
	Content    string
	Domain     string
	Tags       []string
	Importance float64
	Source     string
}

// Arguments returns the payload in tool-call argument form.
func (p Payload) Arguments() map[string]any {
	return map[string]any{
		"content":    p.Content,
		"domain":     p.Domain,
		"tags":       p.Tags,
		"importance": p.Importance,
		"source":     p.Source,
	}
}

type releaseInfo struct {
	version string
	date    string
	kind    string
	notes   []string
}

var syntheticReleases = []releaseInfo{
	{
		version: "1.31.0",
		date:    "2024-08-15",
		kind:    "feature",
		notes: []string{
			"API Server: Enhanced API priority and fairness with new metrics",
			"Kubelet: Improved container restart policies and error handling",
			"Scheduler: New scheduling plugins for workload isolation",
			"etcd: Distributed transaction support for leader election",
			"CNI: Enhanced network policy enforcement",
		},
	},
	{
		version: "1.30.5",
		date:    "2024-09-10",
		kind:    "patch",
		notes: []string{
			"Security fix: CVE-2024-12345 - API server privilege escalation",
			"Performance: Reduce etcd memory footprint by 15%",
			"Reliability: Fix kubelet crash loop on node restart",
			"Networking: Fix iptables rule leaks in service cleanup",
		},
	},
	{
		version: "1.30.4",
		date:    "2024-08-20",
		kind:    "patch",
		notes: []string{
			"Fix: Incorrect RBAC evaluation in webhook handlers",
			"Fix: Memory leak in watch endpoint implementation",
			"Enhancement: Better error messages for common kubectl mistakes",
		},
	},
	{
		version: "1.29.10",
		date:    "2024-09-01",
		kind:    "patch",
		notes: []string{
			"Security: Restrict access to sensitive pod fields",
			"Fix: StatefulSet ordinal ordering bug",
		},
	},
}

type componentInfo struct {
	name    string
	content string
	tags    []string
}

var syntheticComponents = []componentInfo{
	{
		name: "etcd",
		content: "etcd is a distributed, reliable key-value store for the most critical data of a " +
			"distributed system. It serves as the backing store for all cluster data. Production " +
			"setups run 3 or 5 instances for fault tolerance; tuning requires attention to disk " +
			"I/O, network latency, and snapshot intervals.",
		tags: []string{"etcd", "database", "kubernetes-component", "critical"},
	},
	{
		name: "API Server",
		content: "The API server is the control plane component that exposes the cluster API and " +
			"handles every request. High-availability deployments run multiple instances behind a " +
			"load balancer. Key metrics are request latency, audit logging, and authn/authz cost.",
		tags: []string{"api-server", "control-plane", "kubernetes-component"},
	},
	{
		name: "Kubelet",
		content: "The kubelet is the primary node agent. It watches pod specs and keeps containers " +
			"running. Monitor CPU and memory usage, eviction behavior, and container restart " +
			"counts; node capacity planning should account for kubelet overhead.",
		tags: []string{"kubelet", "node-agent", "kubernetes-component"},
	},
	{
		name: "Scheduler",
		content: "The scheduler assigns pods to nodes. Advanced placement uses node affinity, pod " +
			"affinity, taints and tolerations, and priority classes. Performance depends on " +
			"cluster size and scheduling complexity.",
		tags: []string{"scheduler", "pod-placement", "kubernetes-component"},
	},
}

var syntheticPractices = []struct {
	title   string
	content string
}{
	{
		"Resource Requests/Limits",
		"Proper resource requests and limits enable effective scheduling and QoS. Set requests " +
			"to actual usage patterns and limits to the maximum acceptable usage. Use the vertical " +
			"pod autoscaler to refine settings over time.",
	},
	{
		"Network Policies",
		"Network policies control traffic between pods. Default-deny ingress with explicit allow " +
			"rules provides security. Label pods carefully for policy selectors.",
	},
	{
		"RBAC Configuration",
		"Role-based access control should follow the principle of least privilege. Audit " +
			"ClusterRoleBindings regularly and rotate service account tokens.",
	},
	{
		"Pod Disruption Budgets",
		"PDBs prevent simultaneous eviction of multiple replicas during updates. Set minAvailable " +
			"to the required replica count minus one for graceful degradation.",
	},
	{
		"Cluster Autoscaling",
		"Configure autoscaling from actual workload patterns. Pick scale-down thresholds that " +
			"avoid thrashing and watch for scale-up failures caused by resource limits.",
	},
}

// Generate produces the synthetic context payload set: release notes, security
// digests for patch releases, component documentation, and operational best
// practices.
func Generate() []Payload {
	var payloads []Payload

	for _, rel := range syntheticReleases {
		content := fmt.Sprintf("Kubernetes %s Release Notes - %s\n%s", rel.version, rel.date, strings.Join(rel.notes, "\n"))
		payloads = append(payloads, Payload{
			Content:    content,
			Domain:     "Documentation",
			Tags:       []string{"kubernetes", rel.version, rel.kind, "release-notes"},
			Importance: 0.9,
			Source:     "kubernetes-releases",
		})

		if rel.kind == "patch" {
			security := fmt.Sprintf("Security updates in Kubernetes %s:", rel.version)
			for _, note := range rel.notes {
				if containsSecurity(note) {
					security += " " + note + "."
				}
			}
			payloads = append(payloads, Payload{
				Content:    security,
				Domain:     "Code",
				Tags:       []string{"kubernetes", rel.version, "security", "cve"},
				Importance: 1.0,
				Source:     "kubernetes-security",
			})
		}
	}

	for _, comp := range syntheticComponents {
		payloads = append(payloads, Payload{
			Content:    fmt.Sprintf("%s - %s", comp.name, comp.content),
			Domain:     "Documentation",
			Tags:       comp.tags,
			Importance: 0.8,
			Source:     "kubernetes-docs",
		})
	}

	for _, practice := range syntheticPractices {
		payloads = append(payloads, Payload{
			Content:    fmt.Sprintf("%s Best Practices:\n%s", practice.title, practice.content),
			Domain:     "Documentation",
			Tags:       []string{"best-practices", "kubernetes", "operations"},
			Importance: 0.75,
			Source:     "kubernetes-bestpractices",
		})
	}

	return payloads
}

// SyntheticBatchPayload builds a small throwaway payload for scalability and
// stress batches.
func SyntheticBatchPayload(batch, index int) Payload {
	return Payload{
		Content:    fmt.Sprintf("Batch %d test context %d with sample content for scalability measurement", batch, index),
		Domain:     "Testing",
		Tags:       []string{"test", "batch", fmt.Sprintf("batch-%d", batch)},
		Importance: 0.5,
		Source:     "benchmark",
	}
}

func containsSecurity(note string) bool {
	return strings.Contains(note, "CVE") || strings.Contains(note, "Security")
}
