package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyBase64(t *testing.T) {
	body := []byte(`{"id":1}`)
	sig := Base64(body, "secret")

	assert.True(t, VerifyBase64(body, "secret", sig))
	assert.False(t, VerifyBase64(body, "other", sig))
	assert.False(t, VerifyBase64([]byte(`{"id":2}`), "secret", sig))
	assert.False(t, VerifyBase64(body, "secret", "not base64!"))
	assert.False(t, VerifyBase64(body, "secret", ""))
	assert.False(t, VerifyBase64(body, "", Base64(body, "")))
}

func TestVerifyHex(t *testing.T) {
	body := []byte(`{"event":"product.updated"}`)
	sig := Hex(body, "secret")

	assert.True(t, VerifyHex(body, "secret", sig))
	assert.True(t, VerifyHex(body, "secret", "sha256="+sig))
	assert.False(t, VerifyHex(body, "secret", sig[:10]))
	assert.False(t, VerifyHex(body, "secret", "zz"))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("shared", "shared"))
	assert.False(t, Equal("shared", "Shared"))
	assert.False(t, Equal("", ""))
}

func TestBodyID(t *testing.T) {
	a := BodyID([]byte("one"))
	assert.Equal(t, a, BodyID([]byte("one")))
	assert.NotEqual(t, a, BodyID([]byte("two")))
}
