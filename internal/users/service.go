package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mdmops/console/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, id, email, name, passwordHash string) error
}

// RoleStore reads and writes role assignments.
type RoleStore interface {
	Assignments(ctx context.Context) (map[string]string, error)
	AssignRole(ctx context.Context, actor, role string) error
}

// Service handles user business logic.
type Service struct {
	repo         RepositoryPort
	roles        RoleStore
	events       *shared.AuthEvents
	fallbackRole string
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles RoleStore, events *shared.AuthEvents, fallbackRole string) *Service {
	if fallbackRole == "" {
		fallbackRole = shared.RoleViewer
	}
	return &Service{repo: repo, roles: roles, events: events, fallbackRole: fallbackRole}
}

// ListUsers returns all users with their effective role.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	assignments, err := s.roles.Assignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: list roles: %w", err)
	}
	for i := range users {
		role := assignments[users[i].ID]
		if role == "" {
			role = s.fallbackRole
		}
		users[i].Role = role
	}
	return users, nil
}

// CreateUser provisions an account and its role assignment.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	id := uuid.NewString()
	if err := s.repo.CreateUser(ctx, id, in.Email, in.Name, string(hash)); err != nil {
		return User{}, err
	}
	role := strings.TrimSpace(in.Role)
	if err := s.roles.AssignRole(ctx, id, role); err != nil {
		return User{}, fmt.Errorf("users: assign role: %w", err)
	}
	return User{ID: id, Email: strings.ToLower(in.Email), Name: in.Name, IsActive: true, Role: role}, nil
}

// SetRole reassigns actor's role. Live sessions of the actor refresh.
func (s *Service) SetRole(ctx context.Context, actor, role string) error {
	role = strings.TrimSpace(role)
	if err := s.roles.AssignRole(ctx, actor, role); err != nil {
		return fmt.Errorf("users: assign role: %w", err)
	}
	s.events.Publish(shared.AuthEvent{Kind: shared.EventRoleChanged, Actor: actor, Role: role})
	return nil
}
