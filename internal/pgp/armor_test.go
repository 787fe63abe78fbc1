package pgp

import (
	"bytes"
	"io"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/require"
)

func TestArmorDearmorRoundTrip(t *testing.T) {
	bodies := [][]byte{
		[]byte{},
		[]byte("x"),
		bytes.Repeat([]byte{0xAB, 0xCD, 0xEF}, 100),
		bytes.Repeat([]byte{0x00}, 48),
	}

	for _, body := range bodies {
		armored := Armor(body)
		recovered, err := Dearmor(armored)
		require.NoError(t, err)
		require.Equal(t, body, recovered)
	}
}

func TestArmorCrossChecksWithProtonMailArmor(t *testing.T) {
	body := bytes.Repeat([]byte{0x42}, 200)
	armored := Armor(body)

	block, err := armor.Decode(bytes.NewReader(armored))
	require.NoError(t, err)
	require.Equal(t, "PGP SIGNATURE", block.Type)

	decoded, err := io.ReadAll(block.Body)
	require.NoError(t, err)
	require.Equal(t, body, decoded)
}

func TestDearmorRejectsBadChecksum(t *testing.T) {
	armored := Armor([]byte("hello"))
	corrupted := bytes.Replace(armored, []byte("=AAAA"), []byte("=BBBB"), 1)
	if bytes.Equal(corrupted, armored) {
		// checksum line did not happen to contain our needle; flip a body byte instead
		// ("bGVsbG8=" decodes to "lello")
		corrupted = bytes.Replace(armored, []byte("aGVsbG8"), []byte("bGVsbG8"), 1)
	}
	_, err := Dearmor(corrupted)
	require.Error(t, err)
}

func TestDearmorRejectsMissingMarkers(t *testing.T) {
	_, err := Dearmor([]byte("not armor at all"))
	require.Error(t, err)
}

func TestCRC24KnownValue(t *testing.T) {
	// With no input the register is never shifted, so the CRC-24 of an
	// empty string is the init value itself.
	require.Equal(t, uint32(crc24Init&crc24Mask), crc24(nil))
}
