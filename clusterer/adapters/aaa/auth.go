package aaa

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "yandex-cleaning-service"

// Authentication, Authorization, Accounting.
// Токены выдаёт сервис авторизации, здесь только проверяем подпись и берём user id из subject.
type AAA struct {
	secret   []byte
	tokenTTL time.Duration
	log      *slog.Logger
}

func New(secret string, tokenTTL time.Duration, log *slog.Logger) (AAA, error) {
	if secret == "" {
		return AAA{}, errors.New("empty jwt secret")
	}
	return AAA{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		log:      log,
	}, nil
}

// Issue signs a token for userID. Backs the -issue-token flag of the server.
func (a AAA) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("empty user id")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		a.log.Error("cannot sign token", "error", err)
		return "", err
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the user id.
func (a AAA) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("empty token")
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("token without subject")
	}
	return claims.Subject, nil
}
