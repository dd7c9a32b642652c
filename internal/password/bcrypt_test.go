package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_HashAndVerify(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)

	digest, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$2a$"), "digest %q", digest)
	assert.True(t, h.Verify("s3cret", digest))
	assert.False(t, h.Verify("other", digest))
}

func TestBcrypt_VerifyGarbageDigest(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)
	assert.False(t, h.Verify("s3cret", "not-a-digest"))
}
