package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFTokenLifecycle(t *testing.T) {
	m := NewCSRFManager("csrf-secret")
	sess := newSession()

	token, err := m.EnsureToken(sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := m.EnsureToken(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, m.VerifyToken(sess, token))
	assert.ErrorIs(t, m.VerifyToken(sess, "forged"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.VerifyToken(sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(newSession(), token), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(nil, token), ErrCSRFTokenMissing)
}

func TestCSRFTokensDifferPerSession(t *testing.T) {
	m := NewCSRFManager("csrf-secret")
	a, _ := m.EnsureToken(newSession())
	b, _ := m.EnsureToken(newSession())
	assert.NotEqual(t, a, b)
}
