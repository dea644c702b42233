package identity

// Role is the application-level authorization tier of an identity.
type Role string

const (
	// RoleAdmin grants full administrative access, including the directory.
	RoleAdmin Role = "admin"
	// RoleManager grants team management access, including the directory.
	RoleManager Role = "manager"
	// RoleMember is the default tier for self-registered identities.
	RoleMember Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	}
	return false
}

// Elevated reports whether the role grants directory visibility.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleManager
}

// Account is the provider-side credential record (email + secret), distinct
// from the application-level profile. The secret never appears here.
type Account struct {
	ID    string
	Email string
}

// Identity is the application-facing merged view of account + profile.
//
// ID is assigned by the session provider at account creation and is immutable.
// Username and TeamID are genuinely optional: nil means "not set", and TeamID
// is a back-reference only (an identity does not own its team).
type Identity struct {
	ID       string
	Email    string
	Name     string
	Role     Role
	Username *string
	TeamID   *string
}

// Draft describes a new identity to be created by the mutation service.
// Name defaults to the email local part when left empty.
type Draft struct {
	Email    string
	Name     string
	Role     Role
	Username *string
	TeamID   *string
}
