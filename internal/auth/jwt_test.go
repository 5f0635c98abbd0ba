package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTManager(expiry time.Duration) *JWTManager {
	return NewJWTManager(strings.Repeat("a", 32), "dropmail-test", expiry)
}

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := newTestJWTManager(time.Hour)

	token, expiresIn, err := manager.GenerateToken("user-1", "user@example.com", true)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, int64(3600), expiresIn)

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "dropmail-test", claims.Issuer)
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager := newTestJWTManager(-time.Minute)

	token, _, err := manager.GenerateToken("user-1", "user@example.com", false)
	require.NoError(t, err)

	_, err = manager.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTManager_InvalidToken(t *testing.T) {
	manager := newTestJWTManager(time.Hour)

	t.Run("随机字符串", func(t *testing.T) {
		_, err := manager.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("其他密钥签发的令牌", func(t *testing.T) {
		other := NewJWTManager(strings.Repeat("b", 32), "dropmail-test", time.Hour)
		token, _, err := other.GenerateToken("user-1", "user@example.com", false)
		require.NoError(t, err)

		_, err = manager.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPasswordHashing(t *testing.T) {
	t.Run("哈希与校验", func(t *testing.T) {
		hash, err := HashPassword("secret-password")
		require.NoError(t, err)
		assert.NotEqual(t, "secret-password", hash)
		assert.True(t, CheckPassword("secret-password", hash))
		assert.False(t, CheckPassword("wrong-password", hash))
	})

	t.Run("密码太短", func(t *testing.T) {
		assert.ErrorIs(t, ValidatePassword("short"), ErrPasswordTooShort)
	})

	t.Run("密码太长", func(t *testing.T) {
		assert.ErrorIs(t, ValidatePassword(strings.Repeat("x", 100)), ErrPasswordTooLong)
	})

	t.Run("合法密码", func(t *testing.T) {
		assert.NoError(t, ValidatePassword("long-enough-password"))
	})
}
