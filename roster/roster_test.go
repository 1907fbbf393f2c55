package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/generic"
)

func TestDefaultRoster(t *testing.T) {
	ros := Default()

	assert.Equal(t, []string{"Sahil", "Arjun", "Shivam", "Prince"}, ros.NamesByRole(generic.RoleHelper))
	assert.NotContains(t, ros.ActiveNames(), "Maanik")
	assert.True(t, ros.IsExcluded("maanik"))
	assert.True(t, ros.IsNoSale(" nil "))
	assert.False(t, ros.IsNoSale("Nilesh"))

	m, ok := ros.Lookup("SONU")
	require.True(t, ok)
	assert.Equal(t, generic.RoleStockboy, m.Role)
}

func TestNew_LaterDuplicateWins(t *testing.T) {
	ros := New([]StaffMember{
		{Name: "Vivek", Role: generic.RoleSalesman, Active: true},
		{Name: "vivek", Role: generic.RoleHelper, Active: true},
	}, Options{})

	assert.Len(t, ros.Members(), 1)
	m, _ := ros.Lookup("Vivek")
	assert.Equal(t, generic.RoleHelper, m.Role)
}

func TestParseFile_YAML(t *testing.T) {
	data := []byte(`
excluded: [Boss]
staff:
  - name: gaurav
    role: salesman
  - name: Boss
    role: General
    active: false
  - name: Sahil
    role: Helper
`)
	members, opts, err := ParseFile(data)
	require.NoError(t, err)

	require.Len(t, members, 3)
	assert.Equal(t, StaffMember{Name: "Gaurav", Role: generic.RoleSalesman, Active: true}, members[0])
	assert.False(t, members[1].Active)
	assert.Equal(t, []string{"Boss"}, opts.Excluded)
	assert.Equal(t, DefaultNoSaleMarker, opts.NoSaleMarker)
}

func TestParseFile_JSON(t *testing.T) {
	data := []byte(`{"no_sale_marker": "None", "staff": [{"name": "Sonu", "role": "Stockboy"}]}`)

	members, opts, err := ParseFile(data)
	require.NoError(t, err)

	assert.Equal(t, "None", opts.NoSaleMarker)
	assert.Equal(t, DefaultExcluded, opts.Excluded)
	assert.Equal(t, generic.RoleStockboy, members[0].Role)
}

func TestParseFile_InvalidRole(t *testing.T) {
	_, _, err := ParseFile([]byte("staff:\n  - name: X\n    role: Manager\n"))
	assert.ErrorIs(t, err, generic.ErrInvalidRole)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("staff:\n  - name: Prince\n    role: Helper\n"), 0o600))

	members, _, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Prince", members[0].Name)

	_, _, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
