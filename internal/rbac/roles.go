package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleWorker     = "worker"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsAdmin reports whether role may run admin-only dialer actions.
func IsAdmin(role string) bool { return role == RoleAdmin || role == RoleSuperAdmin }

func IsKnownRole(role string) bool {
	switch role {
	case RoleWorker, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}
