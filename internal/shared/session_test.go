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

func newManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "tq_session", time.Hour, false), mr
}

func requestWithCookie(sm *SessionManager, id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id != "" {
		req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: id})
	}
	return req
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWithCookie(sm, ""))
	require.NoError(t, err)
	sess.Set("theme", "dark")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	assert.True(t, mr.Exists("session:"+sess.ID))
	require.Len(t, rec.Result().Cookies(), 1)

	loaded, err := sm.Load(ctx, requestWithCookie(sm, sess.ID))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "dark", loaded.Get("theme"))
}

func TestUntouchedSessionIsNotStored(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, requestWithCookie(sm, ""))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))

	assert.Empty(t, mr.Keys())
	assert.Empty(t, rec.Result().Cookies())
}

func TestUnknownCookieIsNotAdopted(t *testing.T) {
	sm, _ := newManager(t)

	sess, err := sm.Load(context.Background(), requestWithCookie(sm, "attacker-chosen"))
	require.NoError(t, err)
	assert.NotEqual(t, "attacker-chosen", sess.ID)
}

func TestSetUserRotatesID(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, _ := sm.Load(ctx, requestWithCookie(sm, ""))
	sess.Set("k", "v")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	before := sess.ID

	loaded, err := sm.Load(ctx, requestWithCookie(sm, before))
	require.NoError(t, err)
	loaded.SetUser(42)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), loaded))

	assert.NotEqual(t, before, loaded.ID)
	assert.False(t, mr.Exists("session:"+before))
	assert.True(t, mr.Exists("session:"+loaded.ID))

	again, err := sm.Load(ctx, requestWithCookie(sm, loaded.ID))
	require.NoError(t, err)
	assert.EqualValues(t, 42, again.UserID())
	assert.Equal(t, "42", again.UserKey())
	assert.Equal(t, "v", again.Get("k"))
}

func TestDestroyRemovesSession(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, _ := sm.Load(ctx, requestWithCookie(sm, ""))
	sess.SetUser(7)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))

	assert.False(t, mr.Exists("session:"+sess.ID))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestSessionExpiresWithTTL(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, _ := sm.Load(ctx, requestWithCookie(sm, ""))
	sess.SetUser(1)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))

	mr.FastForward(2 * time.Hour)

	loaded, err := sm.Load(ctx, requestWithCookie(sm, sess.ID))
	require.NoError(t, err)
	assert.Zero(t, loaded.UserID())
}

func TestUserIDFromContext(t *testing.T) {
	assert.Zero(t, UserIDFromContext(context.Background()))

	sess := newSession()
	sess.SetUser(9)
	ctx := ContextWithSession(context.Background(), sess)
	assert.EqualValues(t, 9, UserIDFromContext(ctx))
}
