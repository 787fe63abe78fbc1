package pgp

import (
	"bytes"
	"encoding/binary"
)

// packetTagSignature is the new-format packet tag for a signature
// packet (tag 2), encoded as 0xC2 per RFC 4880 §4.2.
const packetTagSignature = 0xC2

// EncodeMPI encodes data as an RFC 4880 multiprecision integer:
// leading zero bytes are stripped (retaining one byte if data is all
// zero), then the remainder is prefixed with its big-endian 16-bit
// bit length.
func EncodeMPI(data []byte) []byte {
	trimmed := bytes.TrimLeft(data, "\x00")
	if len(trimmed) == 0 {
		trimmed = []byte{0}
	}

	bitLen := (len(trimmed)-1)*8 + bitLength(trimmed[0])

	var out bytes.Buffer
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(bitLen))
	out.Write(l[:])
	out.Write(trimmed)
	return out.Bytes()
}

func bitLength(b byte) int {
	n := 0
	for b != 0 {
		n++
		b >>= 1
	}
	return n
}

// packetLength encodes a new-format packet body length per RFC 4880
// §4.2.2.
func packetLength(n int) []byte {
	switch {
	case n < 192:
		return []byte{byte(n)}
	case n < 8384:
		n -= 192
		return []byte{byte(n>>8) + 192, byte(n)}
	default:
		var out [5]byte
		out[0] = 0xFF
		binary.BigEndian.PutUint32(out[1:], uint32(n))
		return out[:]
	}
}

// BuildV4SignaturePacket assembles the body of a v4 RSA signature
// packet (version, sigType, pubkey algo 1, hashAlgo, hashed and
// unhashed subpacket areas, the left-16-bits-of-digest quick-check
// field left as two zero bytes, and the signature MPI) and wraps it
// in a new-format packet header.
func BuildV4SignaturePacket(sigType SigType, hashAlgo byte, hashedSubpackets []byte, fingerprint []byte, rawSignature []byte) []byte {
	issuer := fingerprint
	if len(issuer) > 8 {
		issuer = issuer[len(issuer)-8:]
	}
	unhashed := subpacket(subpacketIssuerKeyID, issuer)

	var body bytes.Buffer
	body.WriteByte(0x04) // version
	body.WriteByte(byte(sigType))
	body.WriteByte(0x01) // pubkey algo: RSA
	body.WriteByte(hashAlgo)

	var hl [2]byte
	binary.BigEndian.PutUint16(hl[:], uint16(len(hashedSubpackets)))
	body.Write(hl[:])
	body.Write(hashedSubpackets)

	var ul [2]byte
	binary.BigEndian.PutUint16(ul[:], uint16(len(unhashed)))
	body.Write(ul[:])
	body.Write(unhashed)

	body.Write([]byte{0x00, 0x00})

	body.Write(EncodeMPI(rawSignature))

	var packet bytes.Buffer
	packet.WriteByte(packetTagSignature)
	packet.Write(packetLength(body.Len()))
	packet.Write(body.Bytes())
	return packet.Bytes()
}
