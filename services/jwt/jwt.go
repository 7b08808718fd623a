package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// AccessTokenValidity is how long issued access tokens stay valid.
const AccessTokenValidity = 24 * time.Hour

// ErrNoSecret is returned when signing or verifying without a key. An empty
// HMAC key would let anyone mint valid tokens.
var ErrNoSecret = errors.New("jwt secret is not configured")

// GenerateToken signs an HS256 access token carrying the identity claims.
func GenerateToken(id uint, username, fullname, secret string) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	claims := jwt.MapClaims{
		"id":       id,
		"username": username,
		"fullname": fullname,
		"exp":      time.Now().Add(AccessTokenValidity).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAndGetClaims verifies signature and expiry and returns the claims.
func ValidateAndGetClaims(tokenString string, secret string) (jwt.MapClaims, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
