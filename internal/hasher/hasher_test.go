package hasher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSHA256BytesKnownValue(t *testing.T) {
	// sha256("") is a well-known constant.
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Bytes(nil))
}

func TestSHA256FileMatchesSHA256Bytes(t *testing.T) {
	content := []byte("hash me please")
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	fromFile, err := SHA256File(path)
	require.NoError(t, err)
	require.Equal(t, SHA256Bytes(content), fromFile)
}

func TestSHA256ReaderMatchesSHA256Bytes(t *testing.T) {
	content := []byte("streamed content")
	fromReader, err := SHA256Reader(strings.NewReader(string(content)))
	require.NoError(t, err)
	require.Equal(t, SHA256Bytes(content), fromReader)
}

func TestSHA256FileMissingFile(t *testing.T) {
	_, err := SHA256File(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}
