package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdmops/console/internal/shared"
)

type memoryEditor struct {
	perms   map[string]PermissionMap
	saveErr error
}

func (m *memoryEditor) PermissionsFor(ctx context.Context, role string) (PermissionMap, error) {
	return m.perms[role], nil
}

func (m *memoryEditor) SetPermissions(ctx context.Context, role string, perms PermissionMap) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.perms[role] = perms
	return nil
}

func newTestRouter(t *testing.T, roles map[string]string, perms map[string]PermissionMap, editor *memoryEditor, events *shared.AuthEvents) http.Handler {
	t.Helper()
	store := NewSessionStore(&fakeSource{roles: roles, perms: perms}, nil, SessionConfig{}, nil)
	handler := NewHandler(nil, editor, events, Middleware{Sessions: store}, nil)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func requestAs(actor, method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	sess := &shared.Session{}
	if actor != "" {
		sess.SetActor(actor)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestNavRequiresSignIn(t *testing.T) {
	router := newTestRouter(t, nil, nil, &memoryEditor{}, shared.NewAuthEvents())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("", http.MethodGet, "/nav", ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNavReturnsFilteredTree(t *testing.T) {
	router := newTestRouter(t,
		map[string]string{"u-1": "viewer"},
		map[string]PermissionMap{"viewer": {"home.view": true}},
		&memoryEditor{}, shared.NewAuthEvents())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("u-1", http.MethodGet, "/nav", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[{"label":"Home","target":"/home"}]}`, rec.Body.String())
}

func TestPermissionCheckModes(t *testing.T) {
	router := newTestRouter(t,
		map[string]string{"u-1": "user"},
		map[string]PermissionMap{"user": {"recons.*": true}},
		&memoryEditor{}, shared.NewAuthEvents())

	cases := []struct {
		body    string
		allowed bool
	}{
		{`{"keys":["recons.view","admin.users.view"],"mode":"any"}`, true},
		{`{"keys":["recons.view","admin.users.view"],"mode":"all"}`, false},
		{`{"keys":[],"mode":"all"}`, true},
		{`{"keys":[],"mode":"any"}`, false},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, requestAs("u-1", http.MethodPost, "/me/permissions/check", tc.body))
		require.Equal(t, http.StatusOK, rec.Code, tc.body)
		var got map[string]bool
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, tc.allowed, got["allowed"], tc.body)
	}
}

func TestSaveRolePermissionsRequiresRoleEdit(t *testing.T) {
	editor := &memoryEditor{perms: map[string]PermissionMap{}}
	router := newTestRouter(t,
		map[string]string{"u-1": "user"},
		map[string]PermissionMap{"user": {"admin.*": true, "admin.roles.edit": false}},
		editor, shared.NewAuthEvents())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("u-1", http.MethodPut, "/admin/roles/viewer/permissions", `{"permissions":{"home.view":true}}`))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, editor.perms)
}

func TestSaveRolePermissionsPublishesChange(t *testing.T) {
	editor := &memoryEditor{perms: map[string]PermissionMap{}}
	events := shared.NewAuthEvents()
	ch, cancel := events.Subscribe(1)
	defer cancel()
	router := newTestRouter(t,
		map[string]string{"owner": "admin"},
		map[string]PermissionMap{"admin": {"*": true}},
		editor, events)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("owner", http.MethodPut, "/admin/roles/viewer/permissions", `{"permissions":{"reports.*":true,"reports.export":false}}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, PermissionMap{"reports.*": true, "reports.export": false}, editor.perms["viewer"])
	evt := <-ch
	assert.Equal(t, shared.EventPermissionsChanged, evt.Kind)
	assert.Equal(t, "viewer", evt.Role)
}

func TestSaveRolePermissionsRejectsMalformedKeys(t *testing.T) {
	editor := &memoryEditor{perms: map[string]PermissionMap{}}
	router := newTestRouter(t,
		map[string]string{"owner": "admin"},
		map[string]PermissionMap{"admin": {"*": true}},
		editor, shared.NewAuthEvents())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("owner", http.MethodPut, "/admin/roles/viewer/permissions", `{"permissions":{"reports.*.view":true,"a..b":true}}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "wildcard must be the last segment")
	assert.Empty(t, editor.perms)
}

func TestSaveRolePermissionsFailureLeavesStateUnchanged(t *testing.T) {
	editor := &memoryEditor{perms: map[string]PermissionMap{"viewer": {"home.view": true}}, saveErr: errors.New("write failed")}
	router := newTestRouter(t,
		map[string]string{"owner": "admin"},
		map[string]PermissionMap{"admin": {"*": true}},
		editor, shared.NewAuthEvents())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs("owner", http.MethodPut, "/admin/roles/viewer/permissions", `{"permissions":{}}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, PermissionMap{"home.view": true}, editor.perms["viewer"])
}
