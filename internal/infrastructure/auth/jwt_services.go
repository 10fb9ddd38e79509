package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
)

// Claims is the identity token payload issued by the identity provider.
type Claims struct {
	Email       string      `json:"email"`
	DisplayName string      `json:"name"`
	Role        models.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c Claims) Actor() models.Actor {
	role := c.Role
	if role == "" {
		role = models.RoleDonor
	}
	return models.Actor{
		UID:         c.Subject,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		Role:        role,
	}
}

// IssueToken signs an HS256 identity token for actor. The service itself only
// verifies tokens; issuing exists for local tooling and tests.
func IssueToken(secret []byte, actor models.Actor, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("JWT secret not set")
	}
	now := time.Now()
	claims := Claims{
		Email:       actor.Email,
		DisplayName: actor.DisplayName,
		Role:        actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies an HS256 token and returns the actor it names.
func ParseToken(secret []byte, tokenStr string) (models.Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return models.Actor{}, err
	}
	if !token.Valid {
		return models.Actor{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return models.Actor{}, errors.New("token has no subject")
	}
	return claims.Actor(), nil
}
