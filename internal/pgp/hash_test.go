package pgp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ralt/signserver/internal/models"
)

func TestCanonicalizeTextStripsTrailingWhitespaceAndNormalizesEOL(t *testing.T) {
	in := []byte("first line  \r\nsecond line\t\nlast line")
	out := CanonicalizeText(in)
	require.Equal(t, "first line\r\nsecond line\r\nlast line", string(out))
}

func TestCanonicalizeTextFallsBackToLatin1(t *testing.T) {
	// 0xE9 alone is invalid UTF-8 but valid Latin-1 ('é').
	in := []byte{0xE9, '\n'}
	out := CanonicalizeText(in)
	require.NotEmpty(t, out)
}

func TestDigestIsDeterministic(t *testing.T) {
	content := []byte("release metadata\n")
	fingerprint := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	d1, hs1, tr1, err := Digest(content, SigBinary, models.SHA256, 1700000000, fingerprint)
	require.NoError(t, err)
	d2, hs2, tr2, err := Digest(content, SigBinary, models.SHA256, 1700000000, fingerprint)
	require.NoError(t, err)

	require.Equal(t, d1, d2)
	require.Equal(t, hs1, hs2)
	require.Equal(t, tr1, tr2)
	require.Len(t, d1, 32)
}

func TestDigestVariesWithCreationTime(t *testing.T) {
	content := []byte("release metadata\n")
	fingerprint := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	d1, _, _, err := Digest(content, SigBinary, models.SHA256, 1700000000, fingerprint)
	require.NoError(t, err)
	d2, _, _, err := Digest(content, SigBinary, models.SHA256, 1700000001, fingerprint)
	require.NoError(t, err)

	require.NotEqual(t, d1, d2)
}

func TestHashedSubpacketsUsesLast8BytesOfFingerprint(t *testing.T) {
	fingerprint := []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8}
	out := HashedSubpackets(0, fingerprint)

	// issuer subpacket is the last 10 bytes: len+1(9), tag(16), 8 key-id bytes
	issuer := out[len(out)-8:]
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, issuer)
}

func TestDigestLengthMatchesAlgorithm(t *testing.T) {
	content := []byte("x")
	fp := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	for algo, want := range map[models.DigestAlgo]int{
		models.SHA256: 32,
		models.SHA384: 48,
		models.SHA512: 64,
	} {
		d, _, _, err := Digest(content, SigBinary, algo, 0, fp)
		require.NoError(t, err)
		require.Len(t, d, want)
	}
}
