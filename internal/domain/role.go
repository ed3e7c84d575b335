package domain

// Role enumerates the profile roles that govern permitted transitions.
type Role string

const (
	RoleUser     Role = "user"
	RoleHardware Role = "hardware"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Privileged reports whether the role may override status and assignment freely.
func (r Role) Privileged() bool {
	return r == RoleManager || r == RoleAdmin
}

// CanTriage reports whether the role may update status and assignment at all.
func (r Role) CanTriage() bool {
	return r == RoleHardware || r.Privileged()
}
