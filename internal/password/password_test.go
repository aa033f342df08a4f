package password_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/disasterapp/auth-service/internal/password"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := password.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$2"), "expected a bcrypt hash, got %q", hash)

	require.True(t, password.Verify(hash, "correct horse battery staple"))
	require.False(t, password.Verify(hash, "correct horse battery stapl"))
	require.False(t, password.Verify(hash, ""))
}

func TestHashIsSalted(t *testing.T) {
	first, err := password.Hash("hunter22")
	require.NoError(t, err)
	second, err := password.Hash("hunter22")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, password.Verify(first, "hunter22"))
	require.True(t, password.Verify(second, "hunter22"))
}

func TestHashRejectsOverlongPassword(t *testing.T) {
	// bcrypt truncates at 72 bytes; the library refuses longer inputs outright.
	_, err := password.Hash(strings.Repeat("a", 80))
	require.ErrorIs(t, err, bcrypt.ErrPasswordTooLong)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	require.False(t, password.Verify("not-a-bcrypt-hash", "whatever"))
	require.False(t, password.Verify("", "whatever"))
}
