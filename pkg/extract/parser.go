package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/soundprediction/graphrag/pkg/types"
)

// Delimiters configures the tuple stream framing.
type Delimiters struct {
	Tuple      string
	Record     string
	Completion string
}

// DefaultDelimiters returns the delimiter set the extraction prompts use.
func DefaultDelimiters() Delimiters {
	return Delimiters{
		Tuple:      "<|>",
		Record:     "##",
		Completion: "<|COMPLETE|>",
	}
}

// RecordKind discriminates parsed tuple shapes.
type RecordKind string

const (
	EntityRecord       RecordKind = "entity"
	RelationshipRecord RecordKind = "relationship"
)

// Record is one parsed extractor tuple.
type Record struct {
	Kind RecordKind

	// Entity fields.
	Name        string
	Type        string
	Description string

	// Relationship fields (Description is shared).
	Source string
	Target string
	Weight float64
}

var parens = regexp.MustCompile(`^\(|\)$`)

// Parse splits an extractor stream into its well-formed records. Tuples that
// do not match a recognized shape are dropped; the count of dropped tuples is
// returned alongside.
func Parse(stream string, delims Delimiters) (records []Record, skipped int) {
	if idx := strings.Index(stream, delims.Completion); idx >= 0 {
		stream = stream[:idx]
	}

	for _, raw := range strings.Split(stream, delims.Record) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		raw = parens.ReplaceAllString(raw, "")
		fields := strings.Split(raw, delims.Tuple)

		switch types.CleanString(strings.ToLower(fields[0])) {
		case "entity":
			if len(fields) < 4 {
				skipped++
				continue
			}
			name := types.Canonicalize(fields[1])
			if name == "" {
				skipped++
				continue
			}
			records = append(records, Record{
				Kind:        EntityRecord,
				Name:        name,
				Type:        types.Canonicalize(fields[2]),
				Description: types.CleanString(fields[3]),
			})

		case "relationship":
			if len(fields) < 5 {
				skipped++
				continue
			}
			source := types.Canonicalize(fields[1])
			target := types.Canonicalize(fields[2])
			if source == "" || target == "" {
				skipped++
				continue
			}
			records = append(records, Record{
				Kind:        RelationshipRecord,
				Source:      source,
				Target:      target,
				Description: types.CleanString(fields[3]),
				Weight:      parseWeight(fields[len(fields)-1]),
			})

		default:
			skipped++
		}
	}
	return records, skipped
}

// parseWeight reads the relationship strength field, defaulting to 1.0 when
// it does not parse numerically.
func parseWeight(field string) float64 {
	weight, err := strconv.ParseFloat(types.CleanString(field), 64)
	if err != nil {
		return 1.0
	}
	return weight
}
