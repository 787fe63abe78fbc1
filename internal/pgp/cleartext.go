package pgp

import "bytes"

// DashEscape prefixes any line beginning with '-' with "- ", per RFC
// 4880 §7.1. Lines not beginning with '-' are left byte-identical, so
// dash-escaping is idempotent on text with no such lines.
func DashEscape(data []byte) []byte {
	lines := bytes.Split(data, []byte("\n"))
	var buf bytes.Buffer

	for i, line := range lines {
		if bytes.HasPrefix(line, []byte("-")) {
			buf.WriteString("- ")
		}
		buf.Write(line)
		if i < len(lines)-1 {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// Cleartext assembles an RFC 4880 §7 cleartext-signed message: the
// header, a Hash: armor header naming algo, the dash-escaped body
// unnormalized (normalization applies only to the hash input, never
// to the emitted body), and the armored detached signature block.
func Cleartext(algoName string, body []byte, armoredSig []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("-----BEGIN PGP SIGNED MESSAGE-----\n")
	buf.WriteString("Hash: ")
	buf.WriteString(algoName)
	buf.WriteString("\n\n")
	buf.Write(DashEscape(body))
	if !bytes.HasSuffix(body, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.Write(armoredSig)
	return buf.Bytes()
}
