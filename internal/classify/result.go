package classify

import "strings"

// Result is the parsed model suggestion for one document.
type Result struct {
	SuggestedPath string  `json:"suggested_path"`
	Category      string  `json:"category"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
	// AutoCreate is carried through but never acted on; missing folders fail resolution.
	AutoCreate bool `json:"auto_create"`
}

// Segments splits the suggested path on "/" and drops empty parts.
func (r *Result) Segments() []string {
	if r == nil {
		return nil
	}
	return SplitPath(r.SuggestedPath)
}

// SplitPath returns the trimmed, non-empty "/"-separated parts of path.
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clampConfidence(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
