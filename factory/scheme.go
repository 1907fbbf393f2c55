/*
Package factory provides JSON/YAML to Go commission scheme conversion.

PURPOSE:
  Converts scheme definitions into incentive.Scheme values. Rates and
  support agents can then be changed per deployment without code changes.

SCHEMA (every field optional; omitted fields keep the default):
  {
    "total_rate": "0.01",
    "pool_rate": "0.0005",
    "support_primary_rate": "0.00675",
    "support_secondary_rate": "0.00275",
    "split_rate": "0.00475",
    "support_agents": ["Sonu", "Shivam"],
    "special_items": ["PETI", "PETICOT", "UNDERWEAR", "INNERWEAR", "JOCKEY"],
    "pool_floor": "1.79",
    "match_threshold": 80,
    "inactivity_threshold": 3,
    "sales_extracts": 2,
    "net_fallback_rate": "0.95",
    "present_codes": ["P"],
    "absent_codes": ["A"]
  }

  Amounts are strings so they parse exactly into decimal.Decimal.
  The same keys work in YAML.

USAGE:
  scheme, err := factory.LoadSchemeFile("scheme.yaml")
  engine := incentive.NewEngine(store, scheme, log)

SEE ALSO:
  - incentive/scheme.go: Scheme type and defaults
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"github.com/warp/incentive-engine/incentive"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// SchemeJSON is the serialized form of a commission scheme.
type SchemeJSON struct {
	TotalRate            string   `json:"total_rate,omitempty" yaml:"total_rate,omitempty"`
	PoolRate             string   `json:"pool_rate,omitempty" yaml:"pool_rate,omitempty"`
	SupportPrimaryRate   string   `json:"support_primary_rate,omitempty" yaml:"support_primary_rate,omitempty"`
	SupportSecondaryRate string   `json:"support_secondary_rate,omitempty" yaml:"support_secondary_rate,omitempty"`
	SplitRate            string   `json:"split_rate,omitempty" yaml:"split_rate,omitempty"`
	SupportAgents        []string `json:"support_agents,omitempty" yaml:"support_agents,omitempty"`
	SpecialItems         []string `json:"special_items,omitempty" yaml:"special_items,omitempty"`
	PoolFloor            string   `json:"pool_floor,omitempty" yaml:"pool_floor,omitempty"`
	MatchThreshold       *int     `json:"match_threshold,omitempty" yaml:"match_threshold,omitempty"`
	InactivityThreshold  *int     `json:"inactivity_threshold,omitempty" yaml:"inactivity_threshold,omitempty"`
	SalesExtracts        *int     `json:"sales_extracts,omitempty" yaml:"sales_extracts,omitempty"`
	NetFallbackRate      string   `json:"net_fallback_rate,omitempty" yaml:"net_fallback_rate,omitempty"`
	PresentCodes         []string `json:"present_codes,omitempty" yaml:"present_codes,omitempty"`
	AbsentCodes          []string `json:"absent_codes,omitempty" yaml:"absent_codes,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseScheme parses a JSON document.
func ParseScheme(data []byte) (incentive.Scheme, error) {
	var sj SchemeJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return incentive.Scheme{}, fmt.Errorf("failed to parse scheme JSON: %w", err)
	}
	return FromJSON(sj)
}

// ParseSchemeYAML parses a YAML document.
func ParseSchemeYAML(data []byte) (incentive.Scheme, error) {
	var sj SchemeJSON
	if err := yaml.Unmarshal(data, &sj); err != nil {
		return incentive.Scheme{}, fmt.Errorf("failed to parse scheme YAML: %w", err)
	}
	return FromJSON(sj)
}

// LoadSchemeFile reads a .json, .yaml or .yml file.
func LoadSchemeFile(path string) (incentive.Scheme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return incentive.Scheme{}, fmt.Errorf("failed to read scheme file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseScheme(data)
	case ".yaml", ".yml":
		return ParseSchemeYAML(data)
	default:
		return incentive.Scheme{}, fmt.Errorf("unsupported scheme file type %q", filepath.Ext(path))
	}
}

// FromJSON overlays sj on the default scheme and validates the result.
func FromJSON(sj SchemeJSON) (incentive.Scheme, error) {
	s := incentive.DefaultScheme()

	rates := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"total_rate", sj.TotalRate, &s.TotalRate},
		{"pool_rate", sj.PoolRate, &s.PoolRate},
		{"support_primary_rate", sj.SupportPrimaryRate, &s.SupportPrimaryRate},
		{"support_secondary_rate", sj.SupportSecondaryRate, &s.SupportSecondaryRate},
		{"split_rate", sj.SplitRate, &s.SplitRate},
		{"pool_floor", sj.PoolFloor, &s.PoolFloor},
		{"net_fallback_rate", sj.NetFallbackRate, &s.NetFallbackRate},
	}
	for _, r := range rates {
		if r.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.TrimSpace(r.raw))
		if err != nil {
			return incentive.Scheme{}, fmt.Errorf("invalid %s %q: %w", r.name, r.raw, err)
		}
		*r.dst = d
	}

	if sj.SupportAgents != nil {
		s.SupportAgents = sj.SupportAgents
	}
	if sj.SpecialItems != nil {
		s.SpecialItems = sj.SpecialItems
	}
	if sj.PresentCodes != nil {
		s.PresentCodes = sj.PresentCodes
	}
	if sj.AbsentCodes != nil {
		s.AbsentCodes = sj.AbsentCodes
	}
	if sj.MatchThreshold != nil {
		s.MatchThreshold = *sj.MatchThreshold
	}
	if sj.InactivityThreshold != nil {
		s.InactivityThreshold = *sj.InactivityThreshold
	}
	if sj.SalesExtracts != nil {
		s.SalesExtracts = *sj.SalesExtracts
	}

	if err := s.Validate(); err != nil {
		return incentive.Scheme{}, fmt.Errorf("invalid scheme: %w", err)
	}
	return s, nil
}

// ToJSON converts a Scheme to its serialized form.
func ToJSON(s incentive.Scheme) SchemeJSON {
	match, inactivity, extracts := s.MatchThreshold, s.InactivityThreshold, s.SalesExtracts
	return SchemeJSON{
		TotalRate:            s.TotalRate.String(),
		PoolRate:             s.PoolRate.String(),
		SupportPrimaryRate:   s.SupportPrimaryRate.String(),
		SupportSecondaryRate: s.SupportSecondaryRate.String(),
		SplitRate:            s.SplitRate.String(),
		SupportAgents:        s.SupportAgents,
		SpecialItems:         s.SpecialItems,
		PoolFloor:            s.PoolFloor.String(),
		MatchThreshold:       &match,
		InactivityThreshold:  &inactivity,
		SalesExtracts:        &extracts,
		NetFallbackRate:      s.NetFallbackRate.String(),
		PresentCodes:         s.PresentCodes,
		AbsentCodes:          s.AbsentCodes,
	}
}
