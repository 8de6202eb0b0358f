package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	tok, err := SignJWT("u_123", "secret", time.Hour)
	require.NoError(t, err)

	sub, err := ParseJWT(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, "u_123", sub)
}

func TestParseRejects(t *testing.T) {
	tok, err := SignJWT("u_123", "secret", time.Hour)
	require.NoError(t, err)
	expired, err := SignJWT("u_123", "secret", -time.Minute)
	require.NoError(t, err)

	for name, tc := range map[string]struct{ token, secret string }{
		"wrong secret": {tok, "other"},
		"expired":      {expired, "secret"},
		"garbage":      {"a.b.c", "secret"},
	} {
		_, err := ParseJWT(tc.token, tc.secret)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}
