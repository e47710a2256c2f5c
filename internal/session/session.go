package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie carrying the signed cart session token.
const CookieName = "cart_session"

type sessionClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies the signed session tokens that tie a browser to
// its cart.
type Issuer struct {
	secret string
}

// NewIssuer constructs an Issuer signing with the given secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: secret}
}

// Issue creates a fresh session id and its signed cookie value.
func (i *Issuer) Issue() (string, string, error) {
	sid := uuid.NewString()
	claims := sessionClaims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.secret))
	if err != nil {
		return "", "", err
	}
	return sid, signed, nil
}

// Parse extracts the session id from a cookie value. Tampered or malformed
// tokens yield an error; callers treat that the same as no cookie at all.
func (i *Issuer) Parse(value string) (string, error) {
	token, err := jwt.ParseWithClaims(value, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(i.secret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid session token")
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || claims.SessionID == "" {
		return "", errors.New("invalid session claims")
	}
	return claims.SessionID, nil
}
