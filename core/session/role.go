package session

import (
	"encoding/json"
	"strings"
)

// Role is the closed set of LMS roles. Any value the backend sends outside of it decodes to RoleUnknown.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleStudent
	RoleInstructor
	RoleAdmin
)

var (
	AllRoles = []Role{RoleStudent, RoleInstructor, RoleAdmin}

	roleNames = map[Role]string{
		RoleUnknown:    "UNKNOWN",
		RoleStudent:    "STUDENT",
		RoleInstructor: "INSTRUCTOR",
		RoleAdmin:      "ADMIN",
	}
)

// ParseRole is case-insensitive and never fails: unrecognized names yield RoleUnknown.
func ParseRole(name string) Role {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "STUDENT":
		return RoleStudent
	case "INSTRUCTOR":
		return RoleInstructor
	case "ADMIN":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return roleNames[RoleUnknown]
}

// Known reports whether r is one of AllRoles.
func (r Role) Known() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	default:
		return false
	}
}

// In reports whether r is one of roles. RoleUnknown is never in any set.
func (r Role) In(roles ...Role) bool {
	if !r.Known() {
		return false
	}
	for _, role := range roles {
		if role == r {
			return true
		}
	}
	return false
}

// Portal is the landing area for r; RoleUnknown lands where students do.
func (r Role) Portal() Role {
	switch r {
	case RoleAdmin:
		return RoleAdmin
	case RoleInstructor:
		return RoleInstructor
	default:
		return RoleStudent
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts both "ADMIN" and {"name": "ADMIN"}.
func (r *Role) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*r = ParseRole(name)
		return nil
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		*r = RoleUnknown
		return nil
	}
	*r = ParseRole(obj.Name)
	return nil
}
