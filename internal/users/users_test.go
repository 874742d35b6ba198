package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdmops/console/internal/rbac"
	"github.com/mdmops/console/internal/shared"
)

type memoryRoles struct {
	assignments map[string]string
	perms       map[string]rbac.PermissionMap
	assignErr   error
}

func (m *memoryRoles) Assignments(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(m.assignments))
	for k, v := range m.assignments {
		out[k] = v
	}
	return out, nil
}

func (m *memoryRoles) AssignRole(ctx context.Context, actor, role string) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	m.assignments[actor] = role
	return nil
}

func (m *memoryRoles) RoleFor(ctx context.Context, actor string) (string, error) {
	return m.assignments[actor], nil
}

func (m *memoryRoles) PermissionsFor(ctx context.Context, role string) (rbac.PermissionMap, error) {
	return m.perms[role], nil
}

type memoryRepo struct {
	users     []User
	createErr error
	hashes    map[string]string
}

func (m *memoryRepo) ListUsers(ctx context.Context) ([]User, error) {
	return append([]User(nil), m.users...), nil
}

func (m *memoryRepo) CreateUser(ctx context.Context, id, email, name, passwordHash string) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.hashes[email] = passwordHash
	m.users = append(m.users, User{ID: id, Email: email, Name: name, IsActive: true})
	return nil
}

func TestRepositoryListUsers(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, email, name, is_active, created_at FROM users ORDER BY email`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "is_active", "created_at"}).
			AddRow("u-1", "a@example.com", "A", true, created).
			AddRow("u-2", "b@example.com", "B", false, created))

	users, err := NewRepository(mock).ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@example.com", users[0].Email)
	assert.False(t, users[1].IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreateUserDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("u-3", "ops@example.com", "Ops", "hash").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = NewRepository(mock).CreateUser(context.Background(), "u-3", "Ops@Example.com", "Ops", "hash")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceListUsersAppliesFallbackRole(t *testing.T) {
	repo := &memoryRepo{users: []User{{ID: "u-1"}, {ID: "u-2"}}}
	roles := &memoryRoles{assignments: map[string]string{"u-1": "admin"}}
	svc := NewService(repo, roles, shared.NewAuthEvents(), "")

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", users[0].Role)
	assert.Equal(t, shared.RoleViewer, users[1].Role)
}

func TestServiceCreateUserHashesPassword(t *testing.T) {
	repo := &memoryRepo{hashes: map[string]string{}}
	roles := &memoryRoles{assignments: map[string]string{}}
	svc := NewService(repo, roles, shared.NewAuthEvents(), "")

	user, err := svc.CreateUser(context.Background(), NewUser{Email: "new@example.com", Name: "New", Password: "s3cretpass", Role: "user"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "user", roles.assignments[user.ID])
	assert.NotEqual(t, "s3cretpass", repo.hashes["new@example.com"])
	assert.True(t, strings.HasPrefix(repo.hashes["new@example.com"], "$2"))
}

func TestServiceSetRolePublishesChange(t *testing.T) {
	events := shared.NewAuthEvents()
	ch, cancel := events.Subscribe(1)
	defer cancel()
	roles := &memoryRoles{assignments: map[string]string{}}
	svc := NewService(&memoryRepo{}, roles, events, "")

	require.NoError(t, svc.SetRole(context.Background(), "u-1", " user "))

	assert.Equal(t, "user", roles.assignments["u-1"])
	evt := <-ch
	assert.Equal(t, shared.EventRoleChanged, evt.Kind)
	assert.Equal(t, "u-1", evt.Actor)
}

func TestServiceSetRoleFailureDoesNotPublish(t *testing.T) {
	events := shared.NewAuthEvents()
	ch, cancel := events.Subscribe(1)
	defer cancel()
	roles := &memoryRoles{assignments: map[string]string{}, assignErr: errors.New("write failed")}
	svc := NewService(&memoryRepo{}, roles, events, "")

	require.Error(t, svc.SetRole(context.Background(), "u-1", "admin"))
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event %v", evt)
	default:
	}
}

func newTestRouter(roles *memoryRoles, repo *memoryRepo) http.Handler {
	store := rbac.NewSessionStore(roles, nil, rbac.SessionConfig{}, nil)
	svc := NewService(repo, roles, shared.NewAuthEvents(), "")
	r := chi.NewRouter()
	r.Route("/admin/users", NewHandler(nil, svc, rbac.Middleware{Sessions: store}).MountRoutes)
	return r
}

func requestAs(actor, method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	sess := &shared.Session{}
	sess.SetActor(actor)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestHandlerListUsers(t *testing.T) {
	roles := &memoryRoles{
		assignments: map[string]string{"u-1": "admin", "u-2": "user"},
		perms:       map[string]rbac.PermissionMap{"admin": {"*": true}, "user": {"home.view": true}},
	}
	router := newTestRouter(roles, &memoryRepo{users: []User{{ID: "u-1", Email: "a@example.com"}, {ID: "u-2", Email: "b@example.com"}}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("u-1", http.MethodGet, "/admin/users/", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Users []User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Users, 2)
	assert.Equal(t, "user", body.Users[1].Role)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("u-2", http.MethodGet, "/admin/users/", ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerSetRoleRequiresRoleEdit(t *testing.T) {
	roles := &memoryRoles{
		assignments: map[string]string{"u-1": "manager", "u-2": "viewer"},
		perms:       map[string]rbac.PermissionMap{"manager": {"admin.users.*": true}},
	}
	router := newTestRouter(roles, &memoryRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("u-1", http.MethodPut, "/admin/users/u-2/role", `{"role":"admin"}`))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "viewer", roles.assignments["u-2"])
}

func TestHandlerSetRoleValidates(t *testing.T) {
	roles := &memoryRoles{
		assignments: map[string]string{"owner": "admin"},
		perms:       map[string]rbac.PermissionMap{"admin": {"*": true}},
	}
	router := newTestRouter(roles, &memoryRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("owner", http.MethodPut, "/admin/users/u-2/role", `{"role":""}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Role":"required"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("owner", http.MethodPut, "/admin/users/u-2/role", `{"role":"user"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user", roles.assignments["u-2"])
}

func TestHandlerCreateUserDuplicateEmail(t *testing.T) {
	roles := &memoryRoles{
		assignments: map[string]string{"owner": "admin"},
		perms:       map[string]rbac.PermissionMap{"admin": {"*": true}},
	}
	router := newTestRouter(roles, &memoryRepo{createErr: ErrDuplicateEmail, hashes: map[string]string{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("owner", http.MethodPost, "/admin/users/",
		`{"email":"a@example.com","name":"A","password":"longenough","role":"user"}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already registered")
}
