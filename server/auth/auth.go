// Package auth issues and verifies session tokens and password hashes.
package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	// AccessTokenDuration is the lifetime of a session token.
	AccessTokenDuration = 7 * 24 * time.Hour

	issuer = "programchat"
)

// ClaimsMessage is the JWT payload for a session.
type ClaimsMessage struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a session token for a user.
func GenerateAccessToken(userID int32, email string, expiresAt time.Time, secret []byte) (string, error) {
	claims := &ClaimsMessage{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(int64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Authenticate verifies a token and returns its claims.
func Authenticate(tokenString string, secret []byte) (*ClaimsMessage, error) {
	claims := &ClaimsMessage{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, errors.Wrap(err, "invalid token")
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// UserID extracts the numeric user id from verified claims.
func (c *ClaimsMessage) UserID() (int32, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 32)
	if err != nil {
		return 0, errors.Wrap(err, "malformed subject")
	}
	return int32(id), nil
}
