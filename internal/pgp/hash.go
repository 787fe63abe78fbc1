// Package pgp implements the subset of RFC 4880 needed to hash and
// serialize OpenPGP v4 signatures: canonical-text normalization, the
// signature hash pipeline shared by the GPG and KMS backends, v4
// signature packet serialization, ASCII armoring, and cleartext
// message framing.
package pgp

import (
	"bytes"
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/binary"
	"unicode/utf8"

	"github.com/ralt/signserver/internal/models"
)

// SigType is the RFC 4880 signature type byte used by this service:
// binary document (0x00) for detached signatures, canonical text
// document (0x01) for cleartext ones.
type SigType byte

const (
	SigBinary SigType = 0x00
	SigText   SigType = 0x01
)

// subpacket tags used in the hashed area.
const (
	subpacketCreationTime = 2
	subpacketIssuerKeyID  = 16
)

// CanonicalizeText implements the RFC 4880 text canonicalization used
// when hashing a cleartext (sign_type=clear-sign) document: decode as
// UTF-8, falling back to Latin-1 on decode failure, normalize line
// endings to "\n", right-strip each line, and rejoin with "\r\n".
func CanonicalizeText(content []byte) []byte {
	text := content
	if !utf8.Valid(text) {
		text = latin1ToUTF8(content)
	}

	normalized := bytes.ReplaceAll(text, []byte("\r\n"), []byte("\n"))
	normalized = bytes.ReplaceAll(normalized, []byte("\r"), []byte("\n"))

	lines := bytes.Split(normalized, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimRight(line, " \t")
	}
	return bytes.Join(lines, []byte("\r\n"))
}

func latin1ToUTF8(b []byte) []byte {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return []byte(string(runes))
}

// subpacket length-prefixes body with one byte: len(body)+1, valid
// for the short subpackets used here, all well under 192 bytes.
func subpacket(tag byte, body []byte) []byte {
	out := make([]byte, 0, 2+len(body))
	out = append(out, byte(len(body)+1))
	out = append(out, tag)
	out = append(out, body...)
	return out
}

// HashedSubpackets builds the hashed-subpacket area: signature
// creation time (tag 2) and issuer key id (tag 16, last 8 bytes of
// the fingerprint).
func HashedSubpackets(creationTime int64, fingerprint []byte) []byte {
	var ct [4]byte
	binary.BigEndian.PutUint32(ct[:], uint32(creationTime))

	issuer := fingerprint
	if len(issuer) > 8 {
		issuer = issuer[len(issuer)-8:]
	}

	var buf bytes.Buffer
	buf.Write(subpacket(subpacketCreationTime, ct[:]))
	buf.Write(subpacket(subpacketIssuerKeyID, issuer))
	return buf.Bytes()
}

// SignatureTrailer builds [0x04, sigType, 0x01 (RSA), hashAlgo,
// be16(len(hashedSubpackets)), hashedSubpackets].
func SignatureTrailer(sigType SigType, hashAlgo byte, hashedSubpackets []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x04)
	buf.WriteByte(byte(sigType))
	buf.WriteByte(0x01) // pubkey algo: RSA
	buf.WriteByte(hashAlgo)

	var hl [2]byte
	binary.BigEndian.PutUint16(hl[:], uint16(len(hashedSubpackets)))
	buf.Write(hl[:])
	buf.Write(hashedSubpackets)
	return buf.Bytes()
}

// FinalTrailer builds [0x04, 0xFF, be32(len(sigTrailer))].
func FinalTrailer(sigTrailer []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x04)
	buf.WriteByte(0xFF)
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(sigTrailer)))
	buf.Write(l[:])
	return buf.Bytes()
}

func cryptoHash(algo models.DigestAlgo) crypto.Hash {
	switch algo {
	case models.SHA384:
		return crypto.SHA384
	case models.SHA512:
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}

// Digest computes the OpenPGP signature hash over content (already
// normalized by the caller when sigType is SigText), the signature
// trailer and the final trailer. It returns the digest, the
// hashed-subpacket area (which the caller passes on when serializing
// the packet body) and the signature trailer.
func Digest(content []byte, sigType SigType, algo models.DigestAlgo, creationTime int64, fingerprint []byte) (digest []byte, hashedSubpackets []byte, sigTrailer []byte, err error) {
	hashedSubpackets = HashedSubpackets(creationTime, fingerprint)
	sigTrailer = SignatureTrailer(sigType, algo.RFC4880ID(), hashedSubpackets)
	finalTrailer := FinalTrailer(sigTrailer)

	h := cryptoHash(algo).New()
	h.Write(content)
	h.Write(sigTrailer)
	h.Write(finalTrailer)
	return h.Sum(nil), hashedSubpackets, sigTrailer, nil
}

// PrepareContent normalizes content for hashing according to sigType:
// canonical text for cleartext signatures, unchanged for detached
// binary signatures.
func PrepareContent(content []byte, sigType SigType) []byte {
	if sigType == SigText {
		return CanonicalizeText(content)
	}
	return content
}
