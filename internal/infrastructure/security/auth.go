// Package security issues and verifies the bearer tokens used by the API
package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nutriscan/tracker/internal/infrastructure/config"
	"github.com/nutriscan/tracker/internal/ports/outbound"
	"go.uber.org/zap"
)

// RoleAdmin may list every user's history.
const RoleAdmin = "admin"

const revokedPrefix = "revoked_token:"

var (
	// ErrInvalidToken covers malformed, badly signed and expired tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRevokedToken is returned for tokens revoked before expiry.
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims represents JWT claims structure. Subject carries the user UUID.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// HasRole reports whether the token grants role
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenService signs and validates HS256 access tokens
type TokenService struct {
	secret     []byte
	issuer     string
	expiration time.Duration
	revoked    outbound.CacheRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewTokenService creates a token service. revoked may be nil, in which
// case revocation is unavailable.
func NewTokenService(cfg config.AuthConfig, revoked outbound.CacheRepository, logger *zap.Logger) *TokenService {
	return &TokenService{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		expiration: cfg.JWTExpiration,
		revoked:    revoked,
		logger:     logger.Named("token-service"),
		now:        time.Now,
	}
}

// GenerateAccessToken creates a new access token for userID
func (s *TokenService) GenerateAccessToken(userID uuid.UUID, roles []string) (string, error) {
	now := s.now()
	claims := &Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, expiry, issuer and revocation
func (s *TokenService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	if s.revoked != nil && claims.ID != "" {
		revoked, err := s.revoked.Exists(ctx, revokedPrefix+claims.ID)
		if err != nil {
			// Fail open when the cache is unreachable.
			s.logger.Warn("Failed to check token revocation", zap.Error(err))
		} else if revoked {
			return nil, ErrRevokedToken
		}
	}

	return claims, nil
}

// RevokeToken blocks the token until it would have expired anyway
func (s *TokenService) RevokeToken(ctx context.Context, claims *Claims) error {
	if s.revoked == nil {
		return errors.New("token revocation is not configured")
	}
	if claims.ID == "" {
		return fmt.Errorf("%w: token has no id", ErrInvalidToken)
	}

	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(s.now()); remaining > 0 {
			ttl = remaining
		}
	}

	if err := s.revoked.Set(ctx, revokedPrefix+claims.ID, []byte(claims.Subject), ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.logger.Info("Token revoked", zap.String("user_id", claims.Subject), zap.String("token_id", claims.ID))
	return nil
}
