package roster

import (
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/match"
)

// =============================================================================
// RESOLUTION
// =============================================================================

type Outcome int

const (
	Unresolved Outcome = iota
	Resolved
	Excluded
	NoSale
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Excluded:
		return "excluded"
	case NoSale:
		return "no_sale"
	default:
		return "unresolved"
	}
}

// Resolution is the result of mapping one raw name.
type Resolution struct {
	Raw        string
	Normalized string
	Name       string // canonical roster name; empty unless Resolved or Excluded
	Role       generic.Role
	Outcome    Outcome
	Score      int
	Exact      bool
}

// Blank reports whether the raw input carried no name at all.
func (r Resolution) Blank() bool { return r.Normalized == "" }

func (r Resolution) OK() bool { return r.Outcome == Resolved }

// Observer receives every non-blank resolution outcome.
type Observer interface {
	ObserveResolution(outcome string)
}

// =============================================================================
// RESOLVER
// =============================================================================

type Resolver struct {
	Matcher   match.Matcher
	Threshold int
	Log       zerolog.Logger
	Observer  Observer
}

func NewResolver(m match.Matcher, threshold int, log zerolog.Logger) *Resolver {
	if m == nil {
		m = match.NewPartialRatio()
	}
	if threshold <= 0 {
		threshold = match.DefaultThreshold
	}
	return &Resolver{Matcher: m, Threshold: threshold, Log: log}
}

// Resolve maps raw onto an active roster member. Order of checks: no-sale
// marker, excluded names, exact match, fuzzy match.
func (r *Resolver) Resolve(raw string, ros *Roster) Resolution {
	res := Resolution{Raw: raw, Normalized: Normalize(raw)}
	if res.Blank() {
		return res
	}

	switch {
	case ros.IsNoSale(res.Normalized):
		res.Outcome = NoSale
		res.Score = 100
		res.Exact = true
	case ros.IsExcluded(res.Normalized):
		res.Outcome = Excluded
		res.Name = res.Normalized
		if m, ok := ros.Lookup(res.Normalized); ok {
			res.Name, res.Role = m.Name, m.Role
		}
		res.Score = 100
		res.Exact = true
	default:
		r.match(&res, ros, ros.ActiveNames())
	}

	r.observe(res)
	return res
}

// ResolveRole restricts candidates to active members holding role. Pool
// distribution uses it to find helpers in the attendance sheet.
func (r *Resolver) ResolveRole(raw string, ros *Roster, role generic.Role) Resolution {
	res := r.resolveRole(raw, ros, role)
	if !res.Blank() {
		r.observe(res)
	}
	return res
}

// ResolveWithRole resolves raw against the whole roster and against members
// holding role. Only the first outcome is observed, so a name is counted once.
func (r *Resolver) ResolveWithRole(raw string, ros *Roster, role generic.Role) (all, inRole Resolution) {
	all = r.Resolve(raw, ros)
	if all.Blank() || (all.OK() && all.Role == role) {
		return all, all
	}
	return all, r.resolveRole(raw, ros, role)
}

func (r *Resolver) resolveRole(raw string, ros *Roster, role generic.Role) Resolution {
	res := Resolution{Raw: raw, Normalized: Normalize(raw)}
	if res.Blank() {
		return res
	}
	r.match(&res, ros, ros.NamesByRole(role))
	return res
}

func (r *Resolver) match(res *Resolution, ros *Roster, candidates []string) {
	for _, c := range candidates {
		if strings.EqualFold(c, res.Normalized) {
			m, _ := ros.Lookup(c)
			res.Name, res.Role = m.Name, m.Role
			res.Outcome, res.Score, res.Exact = Resolved, 100, true
			r.Log.Debug().Str("raw", res.Raw).Str("staff", res.Name).Msg("exact name match")
			return
		}
	}

	best, score, ok := r.Matcher.BestMatch(res.Normalized, candidates)
	res.Score = score
	if !ok || score < r.Threshold {
		res.Outcome = Unresolved
		r.Log.Warn().
			Str("raw", res.Raw).
			Str("best", best).
			Int("score", score).
			Int("threshold", r.Threshold).
			Msg("name not resolved")
		return
	}

	m, _ := ros.Lookup(best)
	res.Name, res.Role, res.Outcome = m.Name, m.Role, Resolved
	r.Log.Info().
		Str("raw", res.Raw).
		Str("staff", res.Name).
		Int("score", score).
		Str("matcher", r.Matcher.Name()).
		Msg("fuzzy matched name")
}

func (r *Resolver) observe(res Resolution) {
	if r.Observer != nil {
		r.Observer.ObserveResolution(res.Outcome.String())
	}
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// Normalize trims, drops embedded newlines, collapses runs of whitespace
// and title-cases each word: " shivam\nkumar " becomes "Shivamkumar".
func Normalize(raw string) string {
	s := strings.NewReplacer("\r", "", "\n", "").Replace(raw)
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

func titleWord(w string) string {
	runes := []rune(strings.ToLower(w))
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}
