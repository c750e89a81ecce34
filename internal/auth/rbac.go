package auth

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the canonical (stored) spelling of a user role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleRegistrar Role = "registrar"
	RoleFaculty   Role = "faculty"
	RoleStudent   Role = "student"
)

// exposedFaculty is how the faculty role is spelled to API clients.
const exposedFaculty = "teacher"

// NormalizeRole maps either spelling of a role, in any case, to its canonical value.
func NormalizeRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin, true
	case "registrar":
		return RoleRegistrar, true
	case "faculty", exposedFaculty:
		return RoleFaculty, true
	case "student":
		return RoleStudent, true
	}
	return "", false
}

// Stored returns the spelling persisted in the users table.
func (r Role) Stored() string { return string(r) }

// Exposed returns the spelling used in tokens and API payloads.
func (r Role) Exposed() string {
	if r == RoleFaculty {
		return exposedFaculty
	}
	return string(r)
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleRegistrar, RoleFaculty, RoleStudent:
		return true
	}
	return false
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Exposed())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	role, ok := NormalizeRole(raw)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
	*r = role
	return nil
}

// Caller is the authenticated principal of a request.
type Caller struct {
	UserID    int64
	Email     string
	Role      Role
	StudentID int64 // zero when the caller has no student profile
	FacultyID int64 // zero when the caller has no faculty profile
}

// Rule is an access policy attached to one protected operation.
//
// Allow lists the roles that may perform the operation; an empty list admits
// every authenticated role. With SelfAccess set, a student caller may only act
// on the record owned by their own student profile. Other roles are not
// subject to the ownership check.
type Rule struct {
	Allow      []Role
	SelfAccess bool
}

// AllowRoles admits exactly the given roles.
func AllowRoles(roles ...Role) Rule {
	return Rule{Allow: roles}
}

// SelfAccess admits the given roles (all roles when none are given) and
// restricts students to their own records.
func SelfAccess(roles ...Role) Rule {
	return Rule{Allow: roles, SelfAccess: true}
}

// Permits reports whether role is on the allow-list.
func (r Rule) Permits(role Role) bool {
	if len(r.Allow) == 0 {
		return role != ""
	}
	for _, allowed := range r.Allow {
		if allowed == role {
			return true
		}
	}
	return false
}

// Authorize evaluates the rule for caller against a resource owned by
// ownerStudentID. Pass zero when the resource has no student owner.
func (r Rule) Authorize(caller Caller, ownerStudentID int64) error {
	if !r.Permits(caller.Role) {
		return ErrForbidden
	}
	if r.SelfAccess && caller.Role == RoleStudent {
		if caller.StudentID == 0 || caller.StudentID != ownerStudentID {
			return ErrForbidden
		}
	}
	return nil
}
