package rbac

import "strings"

// Can resolves key against perms. Resolution order is fixed: the exact key,
// then wildcards from the most specific prefix ("a.b.*") to the broadest
// ("a.*"), then the global "*". The first present entry decides, whether it
// grants or denies. Anything unresolved is denied.
func Can(perms PermissionMap, key string) bool {
	if key == "" {
		return false
	}
	if allowed, ok := perms[key]; ok {
		return allowed
	}
	segments := strings.Split(key, ".")
	for i := len(segments) - 1; i >= 1; i-- {
		if allowed, ok := perms[strings.Join(segments[:i], ".")+".*"]; ok {
			return allowed
		}
	}
	if allowed, ok := perms["*"]; ok {
		return allowed
	}
	return false
}

// CanAll is true when every key is allowed; vacuously true for no keys.
func CanAll(perms PermissionMap, keys []string) bool {
	for _, key := range keys {
		if !Can(perms, key) {
			return false
		}
	}
	return true
}

// CanAny is true when at least one key is allowed; false for no keys.
func CanAny(perms PermissionMap, keys []string) bool {
	for _, key := range keys {
		if Can(perms, key) {
			return true
		}
	}
	return false
}
