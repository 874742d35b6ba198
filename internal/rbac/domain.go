package rbac

// PermissionMap is a flat mapping from dot-delimited permission key to an
// explicit grant (true) or deny (false). Keys may end in ".*" to cover a
// branch; "*" covers everything.
type PermissionMap map[string]bool

// Clone returns an independent copy.
func (m PermissionMap) Clone() PermissionMap {
	out := make(PermissionMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Can reports whether key is allowed by the map.
func (m PermissionMap) Can(key string) bool { return Can(m, key) }

// CanAll reports whether every key is allowed.
func (m PermissionMap) CanAll(keys ...string) bool { return CanAll(m, keys) }

// CanAny reports whether at least one key is allowed.
func (m PermissionMap) CanAny(keys ...string) bool { return CanAny(m, keys) }

// Checker answers permission questions for one actor.
type Checker interface {
	Can(key string) bool
	CanAll(keys ...string) bool
	CanAny(keys ...string) bool
}

// RoleAssignment maps an actor to a role name. Stored at roles/{actor}.
type RoleAssignment struct {
	Role string `json:"role"`
}

// RolePermissions is the permission document of one role. Stored at
// rolePermissions/{role}.
type RolePermissions struct {
	Permissions PermissionMap `json:"permissions"`
}
