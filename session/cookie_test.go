package session_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockerd/lockerd"
	"github.com/lockerd/lockerd/session"
)

func TestCookieCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := session.NewCookieCodec("signing-secret")

	token, err := session.NewToken()
	require.NoError(t, err)

	value := codec.Encode(token)
	assert.True(t, strings.HasPrefix(value, token+"."))

	decoded, err := codec.Decode(value)
	require.NoError(t, err)
	assert.Equal(t, token, decoded)
}

func TestCookieCodec_RejectsTamperedToken(t *testing.T) {
	t.Parallel()

	codec := session.NewCookieCodec("signing-secret")

	value := codec.Encode("legit-token")
	_, sig, _ := strings.Cut(value, ".")

	_, err := codec.Decode("other-token." + sig)
	assert.ErrorIs(t, err, lockerd.ErrUnauthorized)
}

func TestCookieCodec_RejectsWrongSecret(t *testing.T) {
	t.Parallel()

	value := session.NewCookieCodec("secret-a").Encode("token")

	_, err := session.NewCookieCodec("secret-b").Decode(value)
	assert.ErrorIs(t, err, lockerd.ErrUnauthorized)
}

func TestCookieCodec_RejectsMalformedValues(t *testing.T) {
	t.Parallel()

	codec := session.NewCookieCodec("signing-secret")

	for _, value := range []string{"", "nodot", ".onlysig", "token.not-hex"} {
		_, err := codec.Decode(value)
		assert.ErrorIs(t, err, lockerd.ErrUnauthorized, "value %q", value)
	}
}

func TestNewCookie_TransportFlags(t *testing.T) {
	t.Parallel()

	cookie := session.NewCookie("lockerd_session", "value", 24*time.Hour)

	assert.True(t, cookie.HttpOnly, "session cookie must not be script-readable")
	assert.True(t, cookie.Secure, "SameSite=None requires Secure")
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int((24 * time.Hour).Seconds()), cookie.MaxAge)
}

func TestExpiredCookie_ClearsSession(t *testing.T) {
	t.Parallel()

	cookie := session.ExpiredCookie("lockerd_session")

	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestNewToken_Unguessable(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 64 {
		token, err := session.NewToken()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(token), 43) // 32 bytes base64url
		assert.False(t, seen[token])
		seen[token] = true
	}
}
