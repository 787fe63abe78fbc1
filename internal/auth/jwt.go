package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ralt/signserver/internal/models"
)

// claims is the on-wire JWT payload, embedding jwt.RegisteredClaims
// for exp handling plus the user_id/email pair.
type claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Issuer issues and validates HS256 bearer tokens.
type Issuer struct {
	secret []byte
	expiry time.Duration
}

// NewIssuer builds an Issuer. Only HS256 is supported.
func NewIssuer(secret string, expiry time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), expiry: expiry}
}

// Issue signs a token for user, returning the token string and its
// expiry.
func (i *Issuer) Issue(user *models.User) (string, time.Time, error) {
	exp := time.Now().Add(i.expiry)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, models.SigningFailed(err, "failed to sign token")
	}
	return signed, exp, nil
}

// Validate parses and verifies a bearer token, returning its claims.
func (i *Issuer) Validate(tokenString string) (*models.Claims, error) {
	tokenString = ExtractBearer(tokenString)

	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, models.Unauthorized("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, models.Unauthorized("invalid or expired token")
	}

	c, ok := parsed.Claims.(*claims)
	if !ok {
		return nil, models.Unauthorized("invalid token claims")
	}

	return &models.Claims{
		UserID: c.UserID,
		Email:  c.Email,
		Exp:    c.ExpiresAt.Time,
	}, nil
}

// ExtractBearer accepts either the raw JWT or the canonical
// "Bearer <token>" form; if whitespace is present, the part after the
// last space is taken.
func ExtractBearer(header string) string {
	if idx := strings.LastIndex(header, " "); idx != -1 {
		return header[idx+1:]
	}
	return header
}
