package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("GIN_MODE", "release")

	t.Setenv("CHAT_JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CHAT_JWT_SECRET", "   ")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("CHAT_JWT_SECRET", "s3cret")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", c.JWTSecret)
	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, 120, c.WriteRateLimitPerMinute)
}
