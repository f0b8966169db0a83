package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestHash(t *testing.T) {
	h := Hash("abcdef123456")

	assert.Len(t, h, 64)
	assert.Equal(t, h, Hash("  abcdef123456\n"), "surrounding whitespace must not change the hash")
	assert.NotEqual(t, h, Hash("abcdef123457"))
	assert.Equal(t, strings.ToLower(h), h)
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "abcdef12", Prefix("abcdef1234567890"))
	assert.Equal(t, "abc", Prefix("abc"))
}

func TestNewSealer_InvalidKey(t *testing.T) {
	for _, key := range []string{"", "zz", strings.Repeat("a", 62), strings.Repeat("g", 64)} {
		_, err := NewSealer(key)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal("my-tokko-api-key")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "my-tokko-api-key")

	again, err := s.Seal("my-tokko-api-key")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonces must differ between seals")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "my-tokko-api-key", plain)
}

func TestSealer_OpenRejectsTampering(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	other, err := NewSealer(strings.Repeat("ff", 32))
	require.NoError(t, err)

	sealed, err := s.Seal("secret-value")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = s.Open("not base64 !!")
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = s.Open("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrCorrupt)
}
