package roster

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/warp/incentive-engine/generic"
)

// =============================================================================
// DIRECTORY - Mutable roster behind the control surface
// =============================================================================

// Directory keeps the persisted staff list and the current snapshot in
// step. Role edits change the roster only; ledger rows already written
// keep the role they were written with.
type Directory struct {
	store Store
	opts  Options
	log   zerolog.Logger

	mu      sync.RWMutex
	current *Roster
}

// NewDirectory loads the roster from store, seeding it with seed when the
// store is empty.
func NewDirectory(ctx context.Context, store Store, seed []StaffMember, opts Options, log zerolog.Logger) (*Directory, error) {
	d := &Directory{store: store, opts: opts, log: log}

	existing, err := store.ListStaff(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	if len(existing) == 0 {
		for _, m := range seed {
			if err := store.SaveStaff(ctx, m); err != nil {
				return nil, fmt.Errorf("failed to seed staff %q: %w", m.Name, err)
			}
		}
		log.Info().Int("staff", len(seed)).Msg("seeded roster")
	}

	if err := d.Reload(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Roster returns the current snapshot. Callers keep it for the length of a
// run, so edits made mid-run do not affect that run.
func (d *Directory) Roster() *Roster {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

func (d *Directory) Reload(ctx context.Context) error {
	members, err := d.store.ListStaff(ctx)
	if err != nil {
		return fmt.Errorf("failed to list staff: %w", err)
	}
	d.mu.Lock()
	d.current = New(members, d.opts)
	d.mu.Unlock()
	return nil
}

// Add puts a new member on the roster.
func (d *Directory) Add(ctx context.Context, m StaffMember) (StaffMember, error) {
	m.Name = Normalize(m.Name)
	if m.Name == "" {
		return StaffMember{}, fmt.Errorf("%w: name is required", generic.ErrStaffNotFound)
	}
	if !m.Role.Valid() {
		return StaffMember{}, fmt.Errorf("%w: %d", generic.ErrInvalidRole, int(m.Role))
	}
	if _, ok := d.Roster().Lookup(m.Name); ok {
		return StaffMember{}, fmt.Errorf("%w: %s", generic.ErrStaffExists, m.Name)
	}

	if err := d.store.SaveStaff(ctx, m); err != nil {
		return StaffMember{}, fmt.Errorf("failed to save staff: %w", err)
	}
	d.log.Info().Str("staff", m.Name).Stringer("role", m.Role).Msg("staff added")
	return m, d.Reload(ctx)
}

// SetRole relabels an existing member.
func (d *Directory) SetRole(ctx context.Context, name string, role generic.Role) (StaffMember, error) {
	if !role.Valid() {
		return StaffMember{}, fmt.Errorf("%w: %d", generic.ErrInvalidRole, int(role))
	}
	m, ok := d.Roster().Lookup(name)
	if !ok {
		return StaffMember{}, fmt.Errorf("%w: %s", generic.ErrStaffNotFound, strings.TrimSpace(name))
	}

	previous := m.Role
	m.Role = role
	if err := d.store.SaveStaff(ctx, m); err != nil {
		return StaffMember{}, fmt.Errorf("failed to save staff: %w", err)
	}
	d.log.Info().
		Str("staff", m.Name).
		Stringer("from", previous).
		Stringer("to", role).
		Msg("staff role changed")
	return m, d.Reload(ctx)
}
