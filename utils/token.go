package utils

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"

	"civicreport-be/apperrors"
)

// Claims is the identity a verified token resolves to.
type Claims struct {
	UserID string
	Role   string
}

// TokenService signs and verifies bearer tokens. The signing secret is
// injected once at startup.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue returns a signed token encoding the user's id and role.
func (s *TokenService) Issue(userID, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   userID,
		"role": role,
		"exp":  time.Now().Add(s.ttl).Unix(),
	})
	return token.SignedString(s.secret)
}

// Verify parses and validates a token. Missing, malformed, expired and
// badly signed tokens all fail the same way; callers cannot distinguish
// them.
func (s *TokenService) Verify(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, apperrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, apperrors.ErrInvalidToken
	}

	userID, ok := claims["id"].(string)
	if !ok || userID == "" {
		return Claims{}, apperrors.ErrInvalidToken
	}
	role, _ := claims["role"].(string)

	return Claims{UserID: userID, Role: role}, nil
}
