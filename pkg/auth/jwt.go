package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims are the JWT claims carried by user tokens issued by the
// platform's account service.
type UserClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ValidateToken parses and verifies an HS256 user token. The issuer is
// checked only when one is configured.
func ValidateToken(tokenString, secret, issuer string) (*UserClaims, error) {
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token carries no user id")
	}
	if issuer != "" {
		iss, err := claims.GetIssuer()
		if err != nil || iss != issuer {
			return nil, fmt.Errorf("unexpected token issuer")
		}
	}
	return claims, nil
}
