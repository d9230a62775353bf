package service

import (
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// actorClaims is the token body: the actor id travels as "sub", the role as
// "role".
type actorClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTTokenService issues and checks HS256 actor tokens.
type JWTTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
	parser *jwt.Parser
}

func NewJWTTokenService(secret string, expiry time.Duration, issuer string) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// Generate signs a token for actorID acting as role.
func (s *JWTTokenService) Generate(actorID string, role domain.Role) (string, time.Time, error) {
	if actorID == "" {
		return "", time.Time{}, errors.New("empty actor id")
	}
	if !role.Valid() {
		return "", time.Time{}, fmt.Errorf("unknown role %q", role)
	}

	now := time.Now()
	exp := now.Add(s.expiry)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, actorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   actorID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign actor token: %w", err)
	}
	return signed, exp, nil
}

// Validate checks signature, issuer and expiry, then resolves the actor.
func (s *JWTTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	var claims actorClaims
	if _, err := s.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("parse actor token: %w", err)
	}

	if claims.Subject == "" {
		return nil, errors.New("actor token has no subject")
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("actor token carries unknown role %q", claims.Role)
	}
	return &ports.TokenClaims{ActorID: claims.Subject, Role: claims.Role}, nil
}
