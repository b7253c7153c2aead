package encryption

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestService_RoundTrip(t *testing.T) {
	svc, err := NewService(testKey)
	require.NoError(t, err)

	sealed, err := svc.Encrypt("shpat_secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "v1:"))
	assert.NotContains(t, sealed, "shpat_secret")

	plain, err := svc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "shpat_secret", plain)

	// Nonces are random, so sealing twice differs
	again, _ := svc.Encrypt("shpat_secret")
	assert.NotEqual(t, sealed, again)
}

func TestService_DetectsTampering(t *testing.T) {
	svc, err := NewService(testKey)
	require.NoError(t, err)
	sealed, err := svc.Encrypt("ck_value")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, "v1:"))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := "v1:" + base64.StdEncoding.EncodeToString(raw)

	_, err = svc.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	for _, bad := range []string{"", "v1", "v2:" + strings.TrimPrefix(sealed, "v1:"), "v1:!!!", "v1:AAAA"} {
		_, err := svc.Decrypt(bad)
		assert.ErrorIs(t, err, ErrInvalidCiphertext, bad)
	}
}

func TestService_WrongKey(t *testing.T) {
	a, _ := NewService(testKey)
	b, err := NewService(base64.StdEncoding.EncodeToString([]byte("abcdefghijklmnopqrstuvwxyz012345")))
	require.NoError(t, err)

	sealed, err := a.Encrypt("value")
	require.NoError(t, err)
	_, err = b.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewService_RejectsShortKeys(t *testing.T) {
	for _, key := range []string{"", "abcd", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := NewService(key)
		assert.Error(t, err, key)
	}
}
