package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/auth"
	"github.com/avatarctic/tenancy-engine/internal/core/ports"
)

// IdentityConfig holds the shared secret of the authentication collaborator.
type IdentityConfig struct {
	Secret string
	Issuer string
}

// IdentityService verifies HS256 bearer tokens minted by the authentication collaborator.
// Issue exists for operators and tests; production tokens come from outside the engine.
type IdentityService struct {
	secret []byte
	issuer string
	clock  ports.Clock
}

func NewIdentityService(cfg IdentityConfig, clock ports.Clock) *IdentityService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &IdentityService{secret: []byte(cfg.Secret), issuer: cfg.Issuer, clock: clock}
}

func (s *IdentityService) Issue(actorID uuid.UUID, role auth.Role, ttl time.Duration) (string, error) {
	if !role.IsValid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	now := s.clock.Now()
	claims := &auth.Claims{
		ActorID: actorID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID.String(),
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (s *IdentityService) Verify(tokenString string) (*auth.Claims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.clock.Now)}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &auth.Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure the token's signing method is HMAC (prevent alg confusion)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*auth.Claims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	// tokens from the authentication collaborator may carry the actor only as sub
	if claims.ActorID == uuid.Nil && claims.Subject != "" {
		if id, perr := uuid.Parse(claims.Subject); perr == nil {
			claims.ActorID = id
		}
	}
	if claims.ActorID == uuid.Nil {
		return nil, fmt.Errorf("token carries no actor")
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("token carries unknown role %q", claims.Role)
	}
	return claims, nil
}
