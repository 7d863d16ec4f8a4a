package httppresentation

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticatorVerify(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	id, err := auth.Verify(token(t, "u1", RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Role: RoleAdmin}, id)

	id, err = auth.Verify(token(t, "u2", "superuser"))
	require.NoError(t, err)
	assert.Equal(t, RoleCustomer, id.Role)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = auth.Verify(expired)
	assert.ErrorIs(t, err, errUnauthenticated)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = auth.Verify(noSubject)
	assert.ErrorIs(t, err, errUnauthenticated)

	_, err = NewAuthenticator("").Verify(token(t, "u1", RoleCustomer))
	assert.ErrorIs(t, err, errUnauthenticated)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	_, err := bearerToken(r)
	assert.ErrorIs(t, err, errNoToken)

	r.Header.Set("Authorization", "Basic abc")
	_, err = bearerToken(r)
	assert.ErrorIs(t, err, errUnauthenticated)

	r.Header.Set("Authorization", "bearer  abc ")
	tok, err := bearerToken(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}
