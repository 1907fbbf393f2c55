package generic

import (
	"fmt"
	"strings"
)

// Role is the job a staff member holds. The zero value is not a valid role.
type Role int

const (
	RoleSalesman Role = iota + 1
	RoleHelper
	RoleStockboy
	RoleGeneral
)

var roleNames = map[Role]string{
	RoleSalesman: "Salesman",
	RoleHelper:   "Helper",
	RoleStockboy: "Stockboy",
	RoleGeneral:  "General",
}

// Roles lists every valid role in display order.
func Roles() []Role {
	return []Role{RoleSalesman, RoleHelper, RoleStockboy, RoleGeneral}
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for role, name := range roleNames {
		if strings.EqualFold(name, s) {
			return role, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
