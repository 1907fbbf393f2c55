package roster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/warp/incentive-engine/generic"
)

// File is the on-disk roster format. JSON is valid input too, since the
// YAML parser accepts it.
//
//	excluded: [Maanik, NIL]
//	no_sale_marker: Nil
//	staff:
//	  - name: Gaurav
//	    role: Salesman
//	  - name: Maanik
//	    role: General
//	    active: false
type File struct {
	Excluded     []string    `yaml:"excluded" json:"excluded"`
	NoSaleMarker string      `yaml:"no_sale_marker" json:"no_sale_marker"`
	Staff        []FileEntry `yaml:"staff" json:"staff"`
}

type FileEntry struct {
	Name   string `yaml:"name" json:"name"`
	Role   string `yaml:"role" json:"role"`
	Active *bool  `yaml:"active,omitempty" json:"active,omitempty"`
}

// ParseFile decodes a roster document. Missing options fall back to the
// defaults; an empty staff list is allowed.
func ParseFile(data []byte) ([]StaffMember, Options, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, Options{}, fmt.Errorf("failed to parse roster: %w", err)
	}

	opts := DefaultOptions()
	if f.Excluded != nil {
		opts.Excluded = f.Excluded
	}
	if f.NoSaleMarker != "" {
		opts.NoSaleMarker = f.NoSaleMarker
	}

	members := make([]StaffMember, 0, len(f.Staff))
	for i, e := range f.Staff {
		if e.Name == "" {
			return nil, Options{}, fmt.Errorf("roster entry %d: name is required", i)
		}
		role, err := generic.ParseRole(e.Role)
		if err != nil {
			return nil, Options{}, fmt.Errorf("roster entry %q: %w", e.Name, err)
		}
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		members = append(members, StaffMember{Name: Normalize(e.Name), Role: role, Active: active})
	}
	return members, opts, nil
}

// LoadFile reads and parses a roster file.
func LoadFile(path string) ([]StaffMember, Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Options{}, fmt.Errorf("failed to read roster file: %w", err)
	}
	return ParseFile(data)
}
