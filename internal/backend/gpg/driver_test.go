package gpg

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleColonListing = `sec:u:2048:1:AAAABBBBCCCCDDDD:1600000000::::::::::::
fpr:::::::::1111222233334444AAAABBBBCCCCDDDD:
ssb:u:2048:1:EEEEFFFF00001111:1600000000::::::::::::
fpr:::::::::5555666677778888EEEEFFFF00001111:
sec:u:2048:1:9999888877776666:1600000000::::::::::::
fpr:::::::::00001111222233339999888877776666:
`

func TestParseColonListingExtractsPrimaryAndSubkeys(t *testing.T) {
	keys := parseColonListing(sampleColonListing)
	require.Len(t, keys, 2)

	require.Equal(t, "1111222233334444AAAABBBBCCCCDDDD", keys[0].Fingerprint)
	require.Equal(t, "AAAABBBBCCCCDDDD", keys[0].KeyID)
	require.Equal(t, []string{"EEEEFFFF00001111"}, keys[0].Subkeys)

	require.Equal(t, "00001111222233339999888877776666", keys[1].Fingerprint)
	require.Empty(t, keys[1].Subkeys)
}

func TestParseColonListingEmptyInput(t *testing.T) {
	keys := parseColonListing("")
	require.Empty(t, keys)
}

type fakeWriteCloser struct {
	bytes.Buffer
	closed bool
}

func (f *fakeWriteCloser) Close() error {
	f.closed = true
	return nil
}

func TestExpectPassphraseSendsOnPromptOnly(t *testing.T) {
	r, w := io.Pipe()
	go func() {
		defer w.Close()
		io.WriteString(w, "gpg: using key foo\nEnter passphrase: \ndone\n")
	}()

	out := &fakeWriteCloser{}
	var captured bytes.Buffer
	expectPassphrase(r, out, "hunter2", &captured)

	require.True(t, out.closed)
	require.Contains(t, out.String(), "hunter2\r\n")
	require.Equal(t, 1, bytes.Count(out.Bytes(), []byte("hunter2")))
}
