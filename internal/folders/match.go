package folders

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"filing-backend/internal/workdrive"
)

// DefaultThreshold is the minimum Dice similarity for a fuzzy match.
const DefaultThreshold = 0.7

// Match picks the candidate folder for target.
//
// In fuzzy mode the candidate with the highest Sorensen-Dice score (first
// wins ties) becomes the best match when it reaches threshold; the returned
// folder is the first candidate whose lowercased name contains that best
// match. Without fuzzy only a case-insensitive equal name matches.
func Match(candidates []workdrive.Folder, target string, fuzzy bool, threshold float64) (workdrive.Folder, float64, bool) {
	want := normalize(target)
	if want == "" || len(candidates) == 0 {
		return workdrive.Folder{}, 0, false
	}

	if !fuzzy {
		for _, c := range candidates {
			if normalize(c.Name) == want {
				return c, 1, true
			}
		}
		return workdrive.Folder{}, 0, false
	}

	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	bestScore := -1.0
	bestName := ""
	for _, c := range candidates {
		score := Similarity(want, c.Name)
		if score > bestScore {
			bestScore = score
			bestName = normalize(c.Name)
		}
	}
	if bestScore < threshold || bestName == "" {
		return workdrive.Folder{}, bestScore, false
	}
	for _, c := range candidates {
		if strings.Contains(normalize(c.Name), bestName) {
			return c, bestScore, true
		}
	}
	return workdrive.Folder{}, bestScore, false
}

// Similarity is the Sorensen-Dice bigram score of the lowercased inputs.
func Similarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return strutil.Similarity(a, b, metrics.NewSorensenDice())
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
