/*
Package roster holds the set of known staff and resolves free-text names
against it.

PURPOSE:
  Sales extracts carry agent names as typed by cashiers: wrong case,
  trailing spaces, embedded newlines, missing letters. The Roster is the
  canonical list; the Resolver maps raw text onto it.

KEY TYPES:
  StaffMember: canonical name, Role, Active flag
  Roster:      immutable snapshot; lookup by name, list by role
  Directory:   the mutable side used by the control surface (add staff,
               relabel role); hands out a fresh Roster snapshot per run
  Resolver:    exact then fuzzy resolution with a score threshold

SPECIAL NAMES:
  Excluded names ("Maanik", "NIL") are recognized and deliberately earn
  nothing. The no-sale marker ("Nil") in the agent column means the staff
  member recorded no sale; it feeds the inactivity tracker instead.

SEE ALSO:
  - match/: the similarity algorithm
  - incentive/engine.go: takes a Roster snapshot at the start of each run
*/
package roster

import (
	"context"
	"strings"

	"github.com/warp/incentive-engine/generic"
)

// =============================================================================
// STAFF MEMBER
// =============================================================================

type StaffMember struct {
	Name   string
	Role   generic.Role
	Active bool
}

// Store persists the roster. Implemented by generic/store.Memory and
// store/sqlstore.
type Store interface {
	ListStaff(ctx context.Context) ([]StaffMember, error)
	// SaveStaff inserts or replaces the member with the same name.
	SaveStaff(ctx context.Context, m StaffMember) error
}

// =============================================================================
// DEFAULTS
// =============================================================================

const DefaultNoSaleMarker = "Nil"

var DefaultExcluded = []string{"Maanik", "NIL"}

// DefaultMembers is the store's staff list, used to seed an empty roster.
func DefaultMembers() []StaffMember {
	return []StaffMember{
		{Name: "Gaurav", Role: generic.RoleSalesman, Active: true},
		{Name: "Prakash", Role: generic.RoleSalesman, Active: true},
		{Name: "Kishore", Role: generic.RoleSalesman, Active: true},
		{Name: "Hemant", Role: generic.RoleSalesman, Active: true},
		{Name: "Vivek", Role: generic.RoleSalesman, Active: true},
		{Name: "Shum", Role: generic.RoleSalesman, Active: true},
		{Name: "Vinod", Role: generic.RoleSalesman, Active: true},
		{Name: "Rakesh", Role: generic.RoleSalesman, Active: true},
		{Name: "Maanik", Role: generic.RoleGeneral, Active: false},
		{Name: "Sahil", Role: generic.RoleHelper, Active: true},
		{Name: "Arjun", Role: generic.RoleHelper, Active: true},
		{Name: "Shivam", Role: generic.RoleHelper, Active: true},
		{Name: "Sonu", Role: generic.RoleStockboy, Active: true},
		{Name: "Prince", Role: generic.RoleHelper, Active: true},
	}
}

// Options configures the special names a Roster recognizes.
type Options struct {
	Excluded     []string
	NoSaleMarker string
}

func DefaultOptions() Options {
	return Options{
		Excluded:     append([]string(nil), DefaultExcluded...),
		NoSaleMarker: DefaultNoSaleMarker,
	}
}

// =============================================================================
// ROSTER - Immutable snapshot
// =============================================================================

type Roster struct {
	members  []StaffMember
	index    map[string]int
	excluded map[string]bool
	opts     Options
}

func New(members []StaffMember, opts Options) *Roster {
	r := &Roster{
		members:  make([]StaffMember, 0, len(members)),
		index:    make(map[string]int, len(members)),
		excluded: make(map[string]bool, len(opts.Excluded)),
		opts:     opts,
	}
	for _, m := range members {
		key := strings.ToLower(m.Name)
		if i, ok := r.index[key]; ok {
			r.members[i] = m
			continue
		}
		r.index[key] = len(r.members)
		r.members = append(r.members, m)
	}
	for _, name := range opts.Excluded {
		r.excluded[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return r
}

// Default is the built-in roster with default options.
func Default() *Roster {
	return New(DefaultMembers(), DefaultOptions())
}

// Lookup finds a member by exact case-insensitive name, active or not.
func (r *Roster) Lookup(name string) (StaffMember, bool) {
	i, ok := r.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return StaffMember{}, false
	}
	return r.members[i], true
}

func (r *Roster) Members() []StaffMember {
	return append([]StaffMember(nil), r.members...)
}

// ActiveNames returns the names resolution may produce, in roster order.
func (r *Roster) ActiveNames() []string {
	var names []string
	for _, m := range r.members {
		if m.Active {
			names = append(names, m.Name)
		}
	}
	return names
}

// ByRole returns active members holding role.
func (r *Roster) ByRole(role generic.Role) []StaffMember {
	var out []StaffMember
	for _, m := range r.members {
		if m.Active && m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

func (r *Roster) NamesByRole(role generic.Role) []string {
	var names []string
	for _, m := range r.ByRole(role) {
		names = append(names, m.Name)
	}
	return names
}

func (r *Roster) IsExcluded(name string) bool {
	return r.excluded[strings.ToLower(strings.TrimSpace(name))]
}

func (r *Roster) IsNoSale(name string) bool {
	return r.opts.NoSaleMarker != "" && strings.EqualFold(strings.TrimSpace(name), r.opts.NoSaleMarker)
}

// Excluded returns the configured no-credit names.
func (r *Roster) Excluded() []string {
	return append([]string(nil), r.opts.Excluded...)
}

func (r *Roster) Options() Options {
	return Options{Excluded: r.Excluded(), NoSaleMarker: r.opts.NoSaleMarker}
}
