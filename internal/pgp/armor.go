package pgp

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/ralt/signserver/internal/models"
)

const (
	crc24Init = 0xB704CE
	crc24Poly = 0x1864CFB
	crc24Mask = 0xFFFFFF
)

// crc24 computes the RFC 4880 §6.1 CRC-24 checksum of data.
func crc24(data []byte) uint32 {
	crc := uint32(crc24Init)
	for _, b := range data {
		crc ^= uint32(b) << 16
		for i := 0; i < 8; i++ {
			crc <<= 1
			if crc&0x1000000 != 0 {
				crc ^= crc24Poly
			}
		}
	}
	return crc & crc24Mask
}

const armorLineLen = 64

// Armor wraps body (a binary OpenPGP packet stream) in RFC 4880 §6
// ASCII armor for a detached signature.
func Armor(body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("-----BEGIN PGP SIGNATURE-----\n\n")

	encoded := base64.StdEncoding.EncodeToString(body)
	for len(encoded) > armorLineLen {
		buf.WriteString(encoded[:armorLineLen])
		buf.WriteByte('\n')
		encoded = encoded[armorLineLen:]
	}
	if len(encoded) > 0 {
		buf.WriteString(encoded)
		buf.WriteByte('\n')
	}

	checksum := crc24(body)
	var crcBytes [3]byte
	crcBytes[0] = byte(checksum >> 16)
	crcBytes[1] = byte(checksum >> 8)
	crcBytes[2] = byte(checksum)
	fmt.Fprintf(&buf, "=%s\n", base64.StdEncoding.EncodeToString(crcBytes[:]))

	buf.WriteString("-----END PGP SIGNATURE-----\n")
	return buf.Bytes()
}

// Dearmor reverses Armor, validating the embedded CRC-24 and
// returning the original binary body.
func Dearmor(armored []byte) ([]byte, error) {
	lines := bytes.Split(armored, []byte("\n"))

	start := -1
	for i, l := range lines {
		if bytes.Equal(bytes.TrimSpace(l), []byte("-----BEGIN PGP SIGNATURE-----")) {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, models.BadRequest("armor: missing BEGIN header")
	}

	var b64 bytes.Buffer
	var crcLine []byte
	end := -1
	for i := start + 1; i < len(lines); i++ {
		line := bytes.TrimRight(lines[i], "\r")
		if len(line) == 0 {
			continue
		}
		if bytes.Equal(line, []byte("-----END PGP SIGNATURE-----")) {
			end = i
			break
		}
		if bytes.HasPrefix(line, []byte("=")) && len(line) == 5 {
			crcLine = line[1:]
			continue
		}
		b64.Write(line)
	}
	if end == -1 {
		return nil, models.BadRequest("armor: missing END trailer")
	}
	if crcLine == nil {
		return nil, models.BadRequest("armor: missing CRC-24 line")
	}

	body, err := base64.StdEncoding.DecodeString(b64.String())
	if err != nil {
		return nil, models.BadRequest("armor: invalid base64 body: %v", err)
	}

	wantCRC, err := base64.StdEncoding.DecodeString(string(crcLine))
	if err != nil || len(wantCRC) != 3 {
		return nil, models.BadRequest("armor: invalid CRC-24 line")
	}
	want := uint32(wantCRC[0])<<16 | uint32(wantCRC[1])<<8 | uint32(wantCRC[2])
	if crc24(body) != want {
		return nil, models.BadRequest("armor: CRC-24 mismatch")
	}

	return body, nil
}
