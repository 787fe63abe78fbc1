package gpg

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamToTempWritesFullContentWithinBound(t *testing.T) {
	b := &Backend{tmpDir: t.TempDir(), maxUploadBytes: 1024}
	content := bytes.Repeat([]byte("a"), 100)

	path, err := b.streamToTemp(Upload{Filename: "f.bin", Content: bytes.NewReader(content)})
	require.NoError(t, err)
	defer os.Remove(path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestStreamToTempRejectsOversizeUploadAndCleansUp(t *testing.T) {
	tmpDir := t.TempDir()
	b := &Backend{tmpDir: tmpDir, maxUploadBytes: 10}
	content := bytes.Repeat([]byte("b"), 5*uploadChunkBytes)

	_, err := b.streamToTemp(Upload{Filename: "f.bin", Content: bytes.NewReader(content)})
	require.Error(t, err)

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	require.Empty(t, entries, "temp file must be removed on FileTooBig")
}

func TestStreamToTempExactlyAtBoundSucceeds(t *testing.T) {
	b := &Backend{tmpDir: t.TempDir(), maxUploadBytes: 10}
	content := bytes.Repeat([]byte("c"), 10)

	path, err := b.streamToTemp(Upload{Filename: "f.bin", Content: bytes.NewReader(content)})
	require.NoError(t, err)
	defer os.Remove(path)
}
