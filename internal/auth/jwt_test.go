package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ralt/signserver/internal/models"
)

func TestExtractBearer(t *testing.T) {
	cases := map[string]string{
		"Bearer abc.def.ghi": "abc.def.ghi",
		"abc.def.ghi":        "abc.def.ghi",
		"token with  spaces": "spaces",
		"":                   "",
	}
	for in, want := range cases {
		require.Equal(t, want, ExtractBearer(in))
	}
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	user := &models.User{ID: 42, Email: "alice@example.com"}

	token, exp, err := issuer.Issue(user)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, user.Email, claims.Email)
}

func TestValidateRejectsTokenSignedWithDifferentSecret(t *testing.T) {
	issuer := NewIssuer("secret-a", time.Hour)
	other := NewIssuer("secret-b", time.Hour)

	token, _, err := issuer.Issue(&models.User{ID: 1, Email: "a@example.com"})
	require.NoError(t, err)

	_, err = other.Validate(token)
	require.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("secret", -time.Minute)
	token, _, err := issuer.Issue(&models.User{ID: 1, Email: "a@example.com"})
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	require.Error(t, err)
}

func TestValidateAcceptsBearerPrefixedHeader(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, _, err := issuer.Issue(&models.User{ID: 7, Email: "b@example.com"})
	require.NoError(t, err)

	claims, err := issuer.Validate("Bearer " + token)
	require.NoError(t, err)
	require.Equal(t, int64(7), claims.UserID)
}
