package licenses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// RepositoryPort describes license persistence.
type RepositoryPort interface {
	List(ctx context.Context) ([]License, error)
	Get(ctx context.Context, id string) (License, error)
	Save(ctx context.Context, l License) error
	Delete(ctx context.Context, id string) error
}

// ValidationError carries per-field messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "licenses: invalid input"
}

// Service implements license CRUD.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	v := validator.New()
	v.RegisterStructValidation(seatsCoverAssignees, Input{})
	return &Service{repo: repo, validate: v}
}

func seatsCoverAssignees(sl validator.StructLevel) {
	in := sl.Current().Interface().(Input)
	if in.Seats < len(in.Assignees) {
		sl.ReportError(in.Seats, "Seats", "seats", "gtecsfield", "")
	}
}

// List returns every license.
func (s *Service) List(ctx context.Context) ([]License, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("licenses: list: %w", err)
	}
	return items, nil
}

// Create stores a new license under a generated id.
func (s *Service) Create(ctx context.Context, in Input) (License, error) {
	in = normalize(in)
	if err := s.check(in); err != nil {
		return License{}, err
	}
	l := fromInput(uuid.NewString(), in)
	if err := s.repo.Save(ctx, l); err != nil {
		return License{}, fmt.Errorf("licenses: create: %w", err)
	}
	return l, nil
}

// Update replaces an existing license.
func (s *Service) Update(ctx context.Context, id string, in Input) (License, error) {
	in = normalize(in)
	if err := s.check(in); err != nil {
		return License{}, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return License{}, err
		}
		return License{}, fmt.Errorf("licenses: update: %w", err)
	}
	l := fromInput(id, in)
	if err := s.repo.Save(ctx, l); err != nil {
		return License{}, fmt.Errorf("licenses: update: %w", err)
	}
	return l, nil
}

// Delete removes a license.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) check(in Input) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}

func normalize(in Input) Input {
	in.Product = strings.TrimSpace(in.Product)
	assignees := make([]string, 0, len(in.Assignees))
	seen := make(map[string]struct{}, len(in.Assignees))
	for _, a := range in.Assignees {
		a = strings.TrimSpace(a)
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		assignees = append(assignees, a)
	}
	in.Assignees = assignees
	return in
}

func fromInput(id string, in Input) License {
	return License{
		ID:        id,
		Product:   in.Product,
		Seats:     in.Seats,
		Assignees: in.Assignees,
		ExpiresAt: in.ExpiresAt,
		Notes:     in.Notes,
	}
}
