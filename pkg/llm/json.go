package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/graphrag/pkg/types"
)

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls the JSON payload out of a model response. Code fences and
// surrounding prose are stripped and common syntax damage (trailing commas,
// single quotes, truncation) is repaired.
func ExtractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)
	if m := codeFence.FindStringSubmatch(content); m != nil {
		content = strings.TrimSpace(m[1])
	}
	// Trim leading prose up to the first brace or bracket.
	if idx := strings.IndexAny(content, "{["); idx > 0 {
		content = content[idx:]
	}
	if content == "" {
		return "", fmt.Errorf("empty model response: %w", types.ErrParse)
	}

	if json.Valid([]byte(content)) {
		return content, nil
	}
	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrParse, err)
	}
	return repaired, nil
}

// DecodeJSON extracts and unmarshals the JSON payload of a model response.
func DecodeJSON(content string, out any) error {
	payload, err := ExtractJSON(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", types.ErrParse, err)
	}
	return nil
}
