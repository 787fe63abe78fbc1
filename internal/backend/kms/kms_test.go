package kms

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ralt/signserver/internal/models"
)

func TestReadBoundedAllowsExactLimit(t *testing.T) {
	b := &Backend{maxUploadBytes: 10}
	data, err := b.readBounded(bytes.NewReader(bytes.Repeat([]byte("x"), 10)))
	require.NoError(t, err)
	require.Len(t, data, 10)
}

func TestReadBoundedRejectsOversize(t *testing.T) {
	b := &Backend{maxUploadBytes: 10}
	_, err := b.readBounded(bytes.NewReader(bytes.Repeat([]byte("x"), 11)))
	require.Error(t, err)

	var se *models.SignError
	require.ErrorAs(t, err, &se)
	require.Equal(t, models.ErrBadRequest, se.Kind)
}

func TestRawDigestMatchesStandardLibraryHashes(t *testing.T) {
	content := []byte("payload to sign")

	sum256 := sha256.Sum256(content)
	require.Equal(t, sum256[:], rawDigest(content, models.SHA256))

	sum384 := sha512.Sum384(content)
	require.Equal(t, sum384[:], rawDigest(content, models.SHA384))

	sum512 := sha512.Sum512(content)
	require.Equal(t, sum512[:], rawDigest(content, models.SHA512))
}

func TestKeyExistsAndListKeys(t *testing.T) {
	b := &Backend{byKeyID: map[string]KeyMapping{
		"key-a": {KMSID: "key-a", GPGFingerprint: "AAAA"},
	}}
	require.True(t, b.KeyExists("key-a"))
	require.False(t, b.KeyExists("key-b"))
	require.Equal(t, []string{"key-a"}, b.ListKeys())
}
