package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "console_session", "session-secret", time.Hour, false), mr
}

func TestSessionRoundTripKeepsActorAndValues(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetActor("u-42")
	sess.Set("theme", "dark")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "u-42", loaded.Actor())
	assert.Equal(t, "dark", loaded.Get("theme"))
}

func TestSessionDestroyClearsCookie(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetActor("u-1")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	require.True(t, mr.Exists("console:session:"+sess.ID))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	assert.False(t, mr.Exists("console:session:"+sess.ID))
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestSessionLoadUnknownCookieStartsFresh(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "console_session", Value: "stale"})

	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", sess.ID)
	assert.Empty(t, sess.Actor())
}

func TestAuthEventsFanOut(t *testing.T) {
	events := NewAuthEvents()
	a, cancelA := events.Subscribe(1)
	b, cancelB := events.Subscribe(1)
	defer cancelB()

	events.Publish(AuthEvent{Kind: EventSignedIn, Actor: "u-1"})
	assert.Equal(t, "u-1", (<-a).Actor)
	assert.Equal(t, EventSignedIn, (<-b).Kind)

	cancelA()
	_, open := <-a
	assert.False(t, open)

	// Full buffers drop instead of blocking.
	events.Publish(AuthEvent{Kind: EventSignedOut, Actor: "u-1"})
	events.Publish(AuthEvent{Kind: EventSignedOut, Actor: "u-2"})
	assert.Equal(t, "u-1", (<-b).Actor)
}

func TestSessionCookieMustCarryValidSignature(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetActor("u-7")
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	cookie := rec.Result().Cookies()[0]
	assert.Equal(t, sm.CookieValue(sess.ID), cookie.Value)

	for _, value := range []string{sess.ID, sess.ID + ".forged", sess.ID + "."} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "console_session", Value: value})
		loaded, err := sm.Load(ctx, req)
		require.NoError(t, err)
		assert.NotEqual(t, sess.ID, loaded.ID, value)
		assert.Empty(t, loaded.Actor(), value)
	}

	other := NewSessionManager(nil, "console_session", "another-secret", time.Hour, false)
	assert.NotEqual(t, sm.CookieValue(sess.ID), other.CookieValue(sess.ID))
}

func TestCSRFTokenIsSignedAndBoundToSession(t *testing.T) {
	csrf := NewCSRFManager("csrf-secret")
	sess := &Session{}

	token, err := csrf.Token(sess)
	require.NoError(t, err)
	again, err := csrf.Token(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.Verify(sess, token))
	assert.ErrorIs(t, csrf.Verify(sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.Verify(sess, token+"x"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.Verify(&Session{}, token), ErrCSRFTokenMissing)

	planted := &Session{}
	planted.Set(CSRFSessionKey, "nonce.unsigned")
	assert.ErrorIs(t, csrf.Verify(planted, "nonce.unsigned"), ErrCSRFTokenMismatch)
	fresh, err := NewCSRFManager("other").Token(sess)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh, "a token signed with another secret is replaced")
}
