package auth

import (
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTokenFromHeader(t *testing.T) {
	t.Run("accepts a bearer token", func(t *testing.T) {
		token, err := ExtractTokenFromHeader("Bearer abc.def.ghi")
		require.NoError(t, err)
		assert.Equal(t, "abc.def.ghi", token)
	})

	t.Run("scheme match is case insensitive", func(t *testing.T) {
		token, err := ExtractTokenFromHeader("bearer tok")
		require.NoError(t, err)
		assert.Equal(t, "tok", token)
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		_, err := ExtractTokenFromHeader("")
		assert.Error(t, err)
	})

	t.Run("rejects other schemes", func(t *testing.T) {
		_, err := ExtractTokenFromHeader("Basic dXNlcjpwYXNz")
		assert.Error(t, err)
	})

	t.Run("rejects a bare token", func(t *testing.T) {
		_, err := ExtractTokenFromHeader("abc.def.ghi")
		assert.Error(t, err)
	})
}

func TestClaimsFromToken(t *testing.T) {
	t.Run("maps the standard claims", func(t *testing.T) {
		claims := claimsFromToken(&fbauth.Token{
			UID: "u1",
			Claims: map[string]interface{}{
				"email":          "u1@example.com",
				"name":           "User One",
				"email_verified": true,
			},
		})
		assert.Equal(t, "u1", claims.UID)
		assert.Equal(t, "u1@example.com", claims.Email)
		assert.Equal(t, "User One", claims.DisplayName)
		assert.True(t, claims.Verified)
	})

	t.Run("missing claims read as zero values", func(t *testing.T) {
		claims := claimsFromToken(&fbauth.Token{UID: "u2", Claims: map[string]interface{}{}})
		assert.Equal(t, "u2", claims.UID)
		assert.Empty(t, claims.Email)
		assert.False(t, claims.Verified)
	})
}
