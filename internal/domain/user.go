package domain

// Role identifies a user's privilege level. Values match the role
// lookup table referenced by user.role_id.
type Role int

// Roles.
const (
	RoleAdmin     Role = 1
	RoleOrganizer Role = 2
	RoleSpeaker   Role = 3
	RoleVisitor   Role = 4
)

// IsValid checks if the role is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleSpeaker, RoleVisitor:
		return true
	}
	return false
}

// HasPermission reports whether the role grants at least the privilege
// of min. Lower values carry more privilege.
func (r Role) HasPermission(min Role) bool {
	return r <= min
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleOrganizer:
		return "organizer"
	case RoleSpeaker:
		return "speaker"
	case RoleVisitor:
		return "visitor"
	}
	return "unknown"
}

// ParseRole maps a role name to its Role value.
func ParseRole(name string) (Role, bool) {
	switch name {
	case "admin":
		return RoleAdmin, true
	case "organizer":
		return RoleOrganizer, true
	case "speaker":
		return RoleSpeaker, true
	case "visitor":
		return RoleVisitor, true
	}
	return 0, false
}

// User is an account row in the "user" table. Password holds the
// bcrypt hash, never the plain text.
type User struct {
	ID       int64
	Email    string
	Name     string
	Surname  string
	Password string
	Role     Role
}
