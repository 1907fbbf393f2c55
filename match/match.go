/*
Package match scores free-text strings against a set of candidates.

Both staff-name resolution and special-item classification go through the
Matcher interface, so the algorithm can be swapped without touching callers.
Thresholds belong to callers; a Matcher only scores.

SCORES:
  0..100, where 100 means identical (after case folding) or a literal
  substring of the other string.
*/
package match

import (
	"math"
	"strings"

	"github.com/hbollon/go-edlib"
)

// DefaultThreshold is the minimum score callers treat as a match.
const DefaultThreshold = 80

// Matcher is the strategy interface for fuzzy matching.
type Matcher interface {
	// Similarity scores a against b on 0..100.
	Similarity(a, b string) int

	// BestMatch returns the first highest-scoring candidate. ok is false
	// only when candidates is empty.
	BestMatch(query string, candidates []string) (match string, score int, ok bool)

	// Name identifies the algorithm in logs.
	Name() string
}

// =============================================================================
// PARTIAL RATIO
// =============================================================================

// PartialRatio slides the shorter string across the longer one and keeps
// the best window score. Window score is 2*LCS / (len(a)+len(b)).
type PartialRatio struct{}

func NewPartialRatio() PartialRatio { return PartialRatio{} }

func (PartialRatio) Name() string { return "partial_ratio" }

func (PartialRatio) Similarity(a, b string) int {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if strings.Contains(string(long), string(short)) {
		return 100
	}

	shortStr := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		window := string(long[i : i+len(short)])
		lcs := edlib.LCS(shortStr, window)
		r := 2 * float64(lcs) / float64(len(short)+len(short))
		if r > best {
			best = r
		}
	}
	return int(math.Round(best * 100))
}

func (p PartialRatio) BestMatch(query string, candidates []string) (string, int, bool) {
	return bestMatch(p, query, candidates)
}

// bestMatch is shared by every Matcher; ties keep the earliest candidate.
func bestMatch(m Matcher, query string, candidates []string) (string, int, bool) {
	if len(candidates) == 0 {
		return "", 0, false
	}
	best, bestScore := candidates[0], -1
	for _, c := range candidates {
		if s := m.Similarity(query, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore, true
}

// =============================================================================
// FUNC ADAPTER
// =============================================================================

// Func adapts a plain scoring function to the Matcher interface.
type Func func(a, b string) int

func (f Func) Name() string { return "func" }

func (f Func) Similarity(a, b string) int { return f(a, b) }

func (f Func) BestMatch(query string, candidates []string) (string, int, bool) {
	return bestMatch(f, query, candidates)
}

// MatchesAny reports whether query scores at least threshold against any of
// vocabulary.
func MatchesAny(m Matcher, query string, vocabulary []string, threshold int) bool {
	_, score, ok := m.BestMatch(query, vocabulary)
	return ok && score >= threshold
}
