package community

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/soundprediction/graphrag/pkg/kgraph"
)

// DefaultRandomSeed fixes the clustering RNG so the same stabilized view
// always yields the same partition.
const DefaultRandomSeed int64 = 0xDEADBEEF

// LeidenConfig tunes hierarchical Leiden clustering.
type LeidenConfig struct {
	// MaxClusterSize is the size above which a cluster is re-clustered at
	// the next level (default 10).
	MaxClusterSize int `json:"max_cluster_size" mapstructure:"max_cluster_size"`
	// MaxIterations bounds the local-moving phase per level (default 20).
	MaxIterations int `json:"max_iterations" mapstructure:"max_iterations"`
	// Resolution of the modularity objective (default 1.0).
	Resolution float64 `json:"resolution" mapstructure:"resolution"`
	// MaxLevels bounds the hierarchy depth (default 10).
	MaxLevels int `json:"max_levels" mapstructure:"max_levels"`
	// RandomSeed seeds the tie-breaking RNG (default DefaultRandomSeed).
	RandomSeed int64 `json:"random_seed" mapstructure:"random_seed"`
}

// DefaultLeidenConfig returns the clustering defaults.
func DefaultLeidenConfig() LeidenConfig {
	return LeidenConfig{
		MaxClusterSize: 10,
		MaxIterations:  20,
		Resolution:     1.0,
		MaxLevels:      10,
		RandomSeed:     DefaultRandomSeed,
	}
}

func (c LeidenConfig) withDefaults() LeidenConfig {
	if c.MaxClusterSize <= 0 {
		c.MaxClusterSize = 10
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 20
	}
	if c.Resolution <= 0 {
		c.Resolution = 1.0
	}
	if c.MaxLevels <= 0 {
		c.MaxLevels = 10
	}
	if c.RandomSeed == 0 {
		c.RandomSeed = DefaultRandomSeed
	}
	return c
}

// Assignment maps node uids to cluster ids at one hierarchy level.
type Assignment struct {
	Level    int
	Clusters map[string]string
}

// HierarchicalLeiden partitions the stabilized view. Level 0 is the full
// partition; clusters larger than MaxClusterSize are re-clustered on their
// induced subgraph at the next level, until every leaf cluster fits or the
// subgraph refuses to split further. The same view always yields the same
// assignment.
func HierarchicalLeiden(view *kgraph.View, cfg LeidenConfig) ([]Assignment, error) {
	cfg = cfg.withDefaults()
	if view.NodeCount() == 0 {
		return nil, nil
	}

	adj := make(map[string]map[string]float64, view.NodeCount())
	for _, uid := range view.Order {
		adj[uid] = make(map[string]float64)
	}
	for _, e := range view.Edges {
		adj[e.Source][e.Target] = e.Weight
		adj[e.Target][e.Source] = e.Weight
	}

	rng := rand.New(rand.NewSource(cfg.RandomSeed))

	var levels []Assignment
	// Clusters still too large, keyed by the member set to re-cluster.
	pending := [][]string{view.Order}

	for level := 0; level < cfg.MaxLevels && len(pending) > 0; level++ {
		assignment := Assignment{Level: level, Clusters: make(map[string]string)}
		var next [][]string
		index := 0

		for _, members := range pending {
			sub := inducedSubgraph(adj, members)
			partition := leidenPartition(sub, cfg, rng)
			clusters := groupByCluster(partition)

			if level > 0 && len(clusters) == 1 && len(members) > cfg.MaxClusterSize {
				// The subgraph would not split; keep it whole.
				id := fmt.Sprintf("%d.%d", level, index)
				index++
				for _, uid := range members {
					assignment.Clusters[uid] = id
				}
				continue
			}

			for _, cluster := range clusters {
				id := fmt.Sprintf("%d.%d", level, index)
				index++
				for _, uid := range cluster {
					assignment.Clusters[uid] = id
				}
				if len(cluster) > cfg.MaxClusterSize && len(cluster) < len(members) {
					next = append(next, cluster)
				}
			}
		}

		levels = append(levels, assignment)
		pending = next
	}

	return levels, nil
}

// inducedSubgraph restricts adj to the given members.
func inducedSubgraph(adj map[string]map[string]float64, members []string) map[string]map[string]float64 {
	keep := make(map[string]struct{}, len(members))
	for _, uid := range members {
		keep[uid] = struct{}{}
	}
	sub := make(map[string]map[string]float64, len(members))
	for _, uid := range members {
		sub[uid] = make(map[string]float64)
		for neighbor, weight := range adj[uid] {
			if _, ok := keep[neighbor]; ok {
				sub[uid][neighbor] = weight
			}
		}
	}
	return sub
}

// leidenPartition runs local moving plus a connectivity refinement on one
// graph. Node order is a seeded shuffle of the sorted uid list, so results
// are reproducible.
func leidenPartition(adj map[string]map[string]float64, cfg LeidenConfig, rng *rand.Rand) map[string]string {
	nodes := sortedNodes(adj)
	rng.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })

	partition := make(map[string]string, len(nodes))
	for _, uid := range nodes {
		partition[uid] = uid
	}

	totalWeight := 0.0
	degree := make(map[string]float64, len(nodes))
	for uid, neighbors := range adj {
		for _, w := range neighbors {
			degree[uid] += w
			totalWeight += w
		}
	}
	totalWeight /= 2
	if totalWeight == 0 {
		// No edges: every node is its own cluster.
		return partition
	}

	commDegree := make(map[string]float64, len(nodes))
	for uid, d := range degree {
		commDegree[partition[uid]] = d
	}

	improved := true
	for iter := 0; iter < cfg.MaxIterations && improved; iter++ {
		improved = false
		for _, uid := range nodes {
			current := partition[uid]

			// Weight from uid into each neighboring community.
			linkWeight := make(map[string]float64)
			for neighbor, w := range adj[uid] {
				linkWeight[partition[neighbor]] += w
			}

			commDegree[current] -= degree[uid]
			bestComm := current
			bestDelta := 0.0
			for comm, w := range linkWeight {
				delta := w - cfg.Resolution*degree[uid]*commDegree[comm]/(2*totalWeight)
				base := linkWeight[current] - cfg.Resolution*degree[uid]*commDegree[current]/(2*totalWeight)
				if delta-base > bestDelta {
					bestDelta = delta - base
					bestComm = comm
				}
			}
			commDegree[bestComm] += degree[uid]

			if bestComm != current {
				partition[uid] = bestComm
				improved = true
			}
		}
	}

	return refinePartition(adj, partition)
}

// refinePartition splits clusters whose members are not connected inside the
// cluster, the well-connectedness guarantee Leiden adds over Louvain.
func refinePartition(adj map[string]map[string]float64, partition map[string]string) map[string]string {
	refined := make(map[string]string, len(partition))
	for uid, comm := range partition {
		refined[uid] = comm
	}
	for comm, members := range groupByClusterMap(partition) {
		if len(members) <= 1 {
			continue
		}
		components := connectedComponents(adj, members)
		for i, component := range components {
			if i == 0 {
				continue
			}
			split := fmt.Sprintf("%s/%d", comm, i)
			for _, uid := range component {
				refined[uid] = split
			}
		}
	}
	return refined
}

// connectedComponents finds components within members, visiting in sorted
// order so the component list is stable.
func connectedComponents(adj map[string]map[string]float64, members []string) [][]string {
	keep := make(map[string]struct{}, len(members))
	for _, uid := range members {
		keep[uid] = struct{}{}
	}
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)

	visited := make(map[string]struct{}, len(members))
	var components [][]string
	for _, start := range sorted {
		if _, ok := visited[start]; ok {
			continue
		}
		var component []string
		queue := []string{start}
		visited[start] = struct{}{}
		for len(queue) > 0 {
			uid := queue[0]
			queue = queue[1:]
			component = append(component, uid)
			for neighbor := range adj[uid] {
				if _, ok := keep[neighbor]; !ok {
					continue
				}
				if _, ok := visited[neighbor]; !ok {
					visited[neighbor] = struct{}{}
					queue = append(queue, neighbor)
				}
			}
		}
		sort.Strings(component)
		components = append(components, component)
	}
	return components
}

// groupByCluster returns the member lists sorted by smallest member uid, so
// cluster numbering is stable.
func groupByCluster(partition map[string]string) [][]string {
	groups := groupByClusterMap(partition)
	clusters := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		clusters = append(clusters, members)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i][0] < clusters[j][0] })
	return clusters
}

func groupByClusterMap(partition map[string]string) map[string][]string {
	groups := make(map[string][]string)
	for uid, comm := range partition {
		groups[comm] = append(groups[comm], uid)
	}
	return groups
}

func sortedNodes(adj map[string]map[string]float64) []string {
	nodes := make([]string, 0, len(adj))
	for uid := range adj {
		nodes = append(nodes, uid)
	}
	sort.Strings(nodes)
	return nodes
}
