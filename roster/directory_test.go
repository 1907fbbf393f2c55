package roster_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/generic"
	"github.com/warp/incentive-engine/generic/store"
	"github.com/warp/incentive-engine/roster"
)

func newTestDirectory(t *testing.T) (*roster.Directory, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	dir, err := roster.NewDirectory(context.Background(), mem, roster.DefaultMembers(), roster.DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	return dir, mem
}

func TestDirectory_SeedsEmptyStore(t *testing.T) {
	dir, mem := newTestDirectory(t)

	staff, err := mem.ListStaff(context.Background())
	require.NoError(t, err)
	assert.Len(t, staff, len(roster.DefaultMembers()))
	assert.Len(t, dir.Roster().Members(), len(roster.DefaultMembers()))
}

func TestDirectory_DoesNotReseed(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveStaff(ctx, roster.StaffMember{Name: "Solo", Role: generic.RoleSalesman, Active: true}))

	dir, err := roster.NewDirectory(ctx, mem, roster.DefaultMembers(), roster.DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"Solo"}, dir.Roster().ActiveNames())
}

func TestDirectory_Add(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestDirectory(t)

	// GIVEN: a new salesman
	m, err := dir.Add(ctx, roster.StaffMember{Name: " rohit ", Role: generic.RoleSalesman, Active: true})

	// THEN: normalized and visible in the next snapshot
	require.NoError(t, err)
	assert.Equal(t, "Rohit", m.Name)
	_, ok := dir.Roster().Lookup("Rohit")
	assert.True(t, ok)

	// AND: adding again conflicts
	_, err = dir.Add(ctx, roster.StaffMember{Name: "Rohit", Role: generic.RoleHelper, Active: true})
	assert.ErrorIs(t, err, generic.ErrStaffExists)
}

func TestDirectory_SetRole(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestDirectory(t)
	before := dir.Roster()

	m, err := dir.SetRole(ctx, "sonu", generic.RoleHelper)
	require.NoError(t, err)
	assert.Equal(t, generic.RoleHelper, m.Role)

	// New snapshot sees the change, the old one does not
	assert.Contains(t, dir.Roster().NamesByRole(generic.RoleHelper), "Sonu")
	assert.NotContains(t, before.NamesByRole(generic.RoleHelper), "Sonu")

	_, err = dir.SetRole(ctx, "Nobody", generic.RoleHelper)
	assert.ErrorIs(t, err, generic.ErrStaffNotFound)

	_, err = dir.SetRole(ctx, "Sonu", generic.Role(42))
	assert.ErrorIs(t, err, generic.ErrInvalidRole)
}
