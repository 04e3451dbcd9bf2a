package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "clip-keeper-devserver"

var errInvalidToken = errors.New("invalid token")

// IssueToken signs a bearer token for a device. Used by the devserver CLI
// to hand out credentials for test setups.
func IssueToken(signKey, deviceID string, ttl time.Duration, now time.Time) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   deviceID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// parseToken validates a bearer token and returns the device id it was
// issued for.
func parseToken(signKey, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(signKey), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidToken, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}
