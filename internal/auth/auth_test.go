package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordMatchesKnownDigest(t *testing.T) {
	assert.Equal(t, "a665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3", HashPassword("123"))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashPassword(""))
}

func TestVerify(t *testing.T) {
	stored := HashPassword("123")

	assert.True(t, Verify(stored, HashPassword("123")))
	assert.True(t, Verify(stored, "A665A45920422F9D417E4867EFDC4FB8A04A1F3FFF1FA07E998E86F7F7A27AE3"))
	assert.False(t, Verify(stored, HashPassword("wrong")))
	assert.False(t, Verify(stored, ""))
	assert.False(t, Verify("", HashPassword("123")))
	assert.True(t, VerifyPassword(stored, "123"))
	assert.False(t, VerifyPassword(stored, ""))
}

func TestUpgradeKeepsCredentialValid(t *testing.T) {
	stored := HashPassword("s3cret")

	upgraded, err := Upgrade(stored)
	require.NoError(t, err)
	assert.True(t, IsUpgraded(upgraded))
	assert.NotEqual(t, stored, upgraded)
	assert.True(t, Verify(upgraded, HashPassword("s3cret")))
	assert.False(t, Verify(upgraded, HashPassword("other")))

	again, err := Upgrade(upgraded)
	require.NoError(t, err)
	assert.Equal(t, upgraded, again)
}
