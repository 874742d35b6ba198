package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mdmops/console/internal/platform/docstore"
)

// Document collections holding role data.
const (
	CollectionRoles           = "roles"
	CollectionRolePermissions = "rolePermissions"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Documents is the document store surface used by the repository.
type Documents interface {
	Get(ctx context.Context, collection, id string, dest any) (time.Time, error)
	Set(ctx context.Context, collection, id string, value any) error
	List(ctx context.Context, collection string) ([]docstore.Document, error)
}

// Repository reads and writes role assignments and role permission maps.
type Repository struct {
	docs Documents
}

// NewRepository constructs a Repository.
func NewRepository(docs Documents) *Repository {
	return &Repository{docs: docs}
}

// RoleFor returns the role assigned to actor, or "" when no record exists.
func (r *Repository) RoleFor(ctx context.Context, actor string) (string, error) {
	var doc RoleAssignment
	if _, err := r.docs.Get(ctx, CollectionRoles, actor, &doc); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("rbac: role for %s: %w", actor, err)
	}
	return strings.TrimSpace(doc.Role), nil
}

// PermissionsFor returns the permission map of role, empty when missing.
func (r *Repository) PermissionsFor(ctx context.Context, role string) (PermissionMap, error) {
	var doc RolePermissions
	if _, err := r.docs.Get(ctx, CollectionRolePermissions, role, &doc); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return PermissionMap{}, nil
		}
		return nil, fmt.Errorf("rbac: permissions for %s: %w", role, err)
	}
	if doc.Permissions == nil {
		return PermissionMap{}, nil
	}
	return doc.Permissions, nil
}

// AssignRole stores the role of actor, overwriting any previous value.
func (r *Repository) AssignRole(ctx context.Context, actor, role string) error {
	return r.docs.Set(ctx, CollectionRoles, actor, RoleAssignment{Role: role})
}

// SetPermissions replaces the permission map of role.
func (r *Repository) SetPermissions(ctx context.Context, role string, perms PermissionMap) error {
	if perms == nil {
		perms = PermissionMap{}
	}
	return r.docs.Set(ctx, CollectionRolePermissions, role, RolePermissions{Permissions: perms})
}

// Assignments lists every actor -> role record.
func (r *Repository) Assignments(ctx context.Context) (map[string]string, error) {
	docs, err := r.docs.List(ctx, CollectionRoles)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(docs))
	for _, doc := range docs {
		var assignment RoleAssignment
		if err := doc.Decode(&assignment); err != nil {
			return nil, err
		}
		out[doc.ID] = assignment.Role
	}
	return out, nil
}

// SeedDefaults writes the built-in role permission maps that do not exist yet.
func (r *Repository) SeedDefaults(ctx context.Context, defaults map[string]map[string]bool) error {
	for role, perms := range defaults {
		_, err := r.docs.Get(ctx, CollectionRolePermissions, role, nil)
		if err == nil {
			continue
		}
		if !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("rbac: seed %s: %w", role, err)
		}
		if err := r.SetPermissions(ctx, role, PermissionMap(perms)); err != nil {
			return fmt.Errorf("rbac: seed %s: %w", role, err)
		}
	}
	return nil
}
