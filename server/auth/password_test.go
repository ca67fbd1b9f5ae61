package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	ok, needsUpgrade := VerifyPassword("correct horse battery staple", hash)
	require.True(t, ok)
	require.False(t, needsUpgrade)

	ok, _ = VerifyPassword("wrong password", hash)
	require.False(t, ok)
}

func TestVerifyLegacySHA256Hash(t *testing.T) {
	sum := sha256.Sum256([]byte("legacy password"))
	legacyHash := hex.EncodeToString(sum[:])

	ok, needsUpgrade := VerifyPassword("legacy password", legacyHash)
	require.True(t, ok)
	require.True(t, needsUpgrade)

	// Hexdigest casing does not matter.
	ok, needsUpgrade = VerifyPassword("legacy password", strings.ToUpper(legacyHash))
	require.True(t, ok)
	require.True(t, needsUpgrade)

	ok, _ = VerifyPassword("wrong password", legacyHash)
	require.False(t, ok)
}

func TestVerifyUnknownHashFormat(t *testing.T) {
	ok, needsUpgrade := VerifyPassword("anything", "plainly-not-a-hash")
	require.False(t, ok)
	require.False(t, needsUpgrade)
}
