package pgp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDashEscape(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hello\nworld", "hello\nworld"},
		{"-- \nregular", "- -- \nregular"},
		{"-leading", "- -leading"},
		{"no dash at all", "no dash at all"},
	}
	for _, c := range cases {
		got := DashEscape([]byte(c.in))
		require.Equal(t, c.want, string(got))
	}
}

func TestDashEscapeIdempotentWithoutDashLines(t *testing.T) {
	data := []byte("first line\nsecond line\nthird line")
	once := DashEscape(data)
	twice := DashEscape(once)
	require.Equal(t, once, twice)
}

func TestCleartextFraming(t *testing.T) {
	body := []byte("-----example\nsecond line")
	sig := []byte("-----BEGIN PGP SIGNATURE-----\n\nAAAA\n=AAAA\n-----END PGP SIGNATURE-----\n")

	out := Cleartext("SHA256", body, sig)

	require.True(t, bytes.HasPrefix(out, []byte("-----BEGIN PGP SIGNED MESSAGE-----\nHash: SHA256\n\n")))
	require.Contains(t, string(out), "- -----example")
	require.True(t, bytes.HasSuffix(out, sig))
}
