package classify

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

type wireResult struct {
	SuggestedPath json.RawMessage `json:"suggested_path"`
	Category      string          `json:"category"`
	Confidence    json.RawMessage `json:"confidence"`
	Reasoning     string          `json:"reasoning"`
	AutoCreate    bool            `json:"auto_create"`
}

// Parse extracts a Result from raw model output. It returns nil when the
// text holds no parsable JSON object.
func Parse(text string) *Result {
	stripped := strings.TrimSpace(stripFences(text))
	if stripped == "" {
		return nil
	}

	candidate := outermostObject(stripped)
	if candidate == "" {
		return nil
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(candidate), &wire); err != nil {
		// Only repair output that is itself a JSON object, typically cut off
		// by the token limit. Prose with braces in it stays unparsed.
		if !strings.HasPrefix(stripped, "{") {
			return nil
		}
		repaired, rerr := jsonrepair.JSONRepair(candidate)
		if rerr != nil {
			return nil
		}
		wire = wireResult{}
		if err := json.Unmarshal([]byte(repaired), &wire); err != nil {
			return nil
		}
	}

	return &Result{
		SuggestedPath: decodePath(wire.SuggestedPath),
		Category:      strings.TrimSpace(wire.Category),
		Confidence:    clampConfidence(decodeNumber(wire.Confidence)),
		Reasoning:     strings.TrimSpace(wire.Reasoning),
		AutoCreate:    wire.AutoCreate,
	}
}

func stripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	return strings.ReplaceAll(text, "```", "")
}

// outermostObject returns the text from the first '{' to the last '}', or to
// the end when the object was never closed.
func outermostObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return text[start:]
	}
	return text[start : end+1]
}

// decodePath accepts either a "/"-joined string or an array of segments.
func decodePath(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err == nil {
		return strings.Join(SplitPath(strings.Join(parts, "/")), "/")
	}
	return ""
}

func decodeNumber(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return 0
}
