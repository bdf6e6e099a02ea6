package types

import (
	"fmt"
	"sort"
	"strings"
)

// NodeData represents an entity node in the knowledge graph.
//
// EdgesTo and EdgesFrom are denormalized adjacency sets holding the uids of
// neighboring nodes. The edge documents in the edge collection are the source
// of truth; the adjacency sets are a secondary index kept symmetric by the
// graph store.
type NodeData struct {
	NodeUID         string    `json:"node_uid" mapstructure:"node_uid"`
	NodeTitle       string    `json:"node_title" mapstructure:"node_title"`
	NodeType        string    `json:"node_type" mapstructure:"node_type"`
	NodeDescription string    `json:"node_description" mapstructure:"node_description"`
	NodeDegree      int       `json:"node_degree" mapstructure:"node_degree"`
	DocumentID      string    `json:"document_id" mapstructure:"document_id"`
	CommunityID     string    `json:"community_id,omitempty" mapstructure:"community_id"`
	EdgesTo         []string  `json:"edges_to,omitempty" mapstructure:"edges_to"`
	EdgesFrom       []string  `json:"edges_from,omitempty" mapstructure:"edges_from"`
	Embedding       []float32 `json:"embedding,omitempty" mapstructure:"embedding"`
}

// Validate checks that the NodeData has all required fields set.
func (n *NodeData) Validate() error {
	if n.NodeUID == "" {
		return ErrEmptyUID
	}
	return nil
}

// Degree returns the number of distinct neighbors across both adjacency sets.
func (n *NodeData) Degree() int {
	seen := make(map[string]struct{}, len(n.EdgesTo)+len(n.EdgesFrom))
	for _, uid := range n.EdgesTo {
		seen[uid] = struct{}{}
	}
	for _, uid := range n.EdgesFrom {
		seen[uid] = struct{}{}
	}
	return len(seen)
}

// Neighbors returns the union of both adjacency sets, sorted.
func (n *NodeData) Neighbors() []string {
	seen := make(map[string]struct{}, len(n.EdgesTo)+len(n.EdgesFrom))
	for _, uid := range n.EdgesTo {
		seen[uid] = struct{}{}
	}
	for _, uid := range n.EdgesFrom {
		seen[uid] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for uid := range seen {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

// EdgeData represents a relationship between two nodes.
type EdgeData struct {
	EdgeUID     string  `json:"edge_uid" mapstructure:"edge_uid"`
	SourceUID   string  `json:"source_uid" mapstructure:"source_uid"`
	TargetUID   string  `json:"target_uid" mapstructure:"target_uid"`
	Description string  `json:"description" mapstructure:"description"`
	Weight      float64 `json:"weight,omitempty" mapstructure:"weight"`
	DocumentID  string  `json:"document_id,omitempty" mapstructure:"document_id"`
}

// Validate checks that the EdgeData has both endpoints set.
func (e *EdgeData) Validate() error {
	if e.SourceUID == "" || e.TargetUID == "" {
		return ErrEmptyUID
	}
	return nil
}

// EdgeUID derives the deterministic edge document id from its endpoints.
func EdgeUID(sourceUID, targetUID string) string {
	return fmt.Sprintf("%s_to_%s", sourceUID, targetUID)
}

// Finding is one titled observation inside a community report.
type Finding struct {
	Summary     string `json:"summary" mapstructure:"summary"`
	Explanation string `json:"explanation" mapstructure:"explanation"`
}

// CommunityData represents a detected community together with its generated
// report. Prior reports for the same graph snapshot are overwritten wholesale
// when communities are recomputed.
type CommunityData struct {
	CommunityUID      string    `json:"community_uid" mapstructure:"community_uid"`
	CommunityNodes    []string  `json:"community_nodes" mapstructure:"community_nodes"`
	Title             string    `json:"title" mapstructure:"title"`
	Summary           string    `json:"summary" mapstructure:"summary"`
	Rating            float64   `json:"rating" mapstructure:"rating"`
	RatingExplanation string    `json:"rating_explanation" mapstructure:"rating_explanation"`
	Findings          []Finding `json:"findings,omitempty" mapstructure:"findings"`
	Embedding         []float32 `json:"embedding,omitempty" mapstructure:"embedding"`
	DocumentID        string    `json:"document_id,omitempty" mapstructure:"document_id"`
}

// Validate checks that the CommunityData has all required fields set.
func (c *CommunityData) Validate() error {
	if c.CommunityUID == "" {
		return ErrEmptyUID
	}
	if len(c.CommunityNodes) == 0 {
		return ErrEmptyCommunity
	}
	return nil
}

// CommunityAnswerRequest is the message enqueued for each (query, community)
// pair during global query fan-out.
type CommunityAnswerRequest struct {
	CommunityReport CommunityData `json:"community_report"`
	UserQuery       string        `json:"user_query"`
}

// CommunityReportRequest is the message enqueued for each community during
// asynchronous report generation.
type CommunityReportRequest struct {
	CommunityUID   string   `json:"community_uid"`
	CommunityNodes []string `json:"community_nodes"`
}

// IntermediateResponse is one scored partial answer produced by a map worker
// for a single community.
type IntermediateResponse struct {
	Community string `json:"community" mapstructure:"community"`
	Response  string `json:"response" mapstructure:"response"`
	Score     int    `json:"score" mapstructure:"score"`
}

// MergeDescriptions unions two newline-delimited fragment sets into one.
// Existing fragment order is preserved; new fragments are appended in sorted
// order so the merge is deterministic. Merging is monotone: every fragment of
// either input appears in the output.
func MergeDescriptions(existing, incoming string) string {
	fragments := SplitFragments(existing)
	seen := make(map[string]struct{}, len(fragments))
	for _, f := range fragments {
		seen[f] = struct{}{}
	}
	var added []string
	for _, f := range SplitFragments(incoming) {
		if _, ok := seen[f]; !ok {
			seen[f] = struct{}{}
			added = append(added, f)
		}
	}
	sort.Strings(added)
	fragments = append(fragments, added...)
	return strings.Join(fragments, "\n")
}

// SplitFragments splits a newline-delimited description into its non-empty
// fragments.
func SplitFragments(description string) []string {
	if description == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(description, "\n") {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// MergeDocumentIDs unions two ", "-delimited source document id lists.
func MergeDocumentIDs(existing, incoming string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range []string{existing, incoming} {
		for _, id := range strings.Split(list, ", ") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return strings.Join(out, ", ")
}
