package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/services"
	"github.com/Mustafabeshara/Dashboard2-sub000/utils"
)

// TokenValidator defines the interface for validating JWT tokens
type TokenValidator interface {
	// ValidateToken validates a JWT token and returns claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// JWTValidator validates HS256 tokens signed with a shared secret
type JWTValidator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewJWTValidator creates a validator. An empty issuer disables the issuer check.
func NewJWTValidator(secret, issuer string) *JWTValidator {
	return &JWTValidator{
		secret: []byte(secret),
		issuer: issuer,
		leeway: 30 * time.Second,
	}
}

// ValidateToken parses the token and checks signature, expiry and issuer
func (v *JWTValidator) ValidateToken(_ context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, services.WrapError(services.ErrorTypeUnauthorized, services.ErrIdentityExpired.Message, err)
		}
		return nil, services.WrapError(services.ErrorTypeUnauthorized, services.ErrInvalidIdentity.Message, err)
	}
	if claims.Subject == "" {
		return nil, services.WrapError(services.ErrorTypeUnauthorized, services.ErrInvalidIdentity.Message, fmt.Errorf("token has no subject"))
	}
	return claims, nil
}

// SignToken issues an HS256 token for subject; used by the CLI and tests
func (v *JWTValidator) SignToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// AuthMiddleware attaches the caller identity to the request context
type AuthMiddleware struct {
	validator TokenValidator
	required  bool
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. With required unset, requests
// without a token pass through as anonymous; a bad token is still rejected.
func NewAuthMiddleware(validator TokenValidator, required bool, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		required:  required,
		logger:    logger,
	}
}

// Identify validates the bearer token, if any, and stores the subject as the user ID
func (m *AuthMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token, present := extractToken(r)
		if !present {
			if m.required {
				m.logger.Warn("missing token",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if token == "" || m.validator == nil {
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx = WithClaims(ctx, claims)
		ctx = WithUserID(ctx, claims.Subject)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Subject))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken reads "Authorization: Bearer TOKEN". present reports whether
// the header was sent at all; a malformed header yields an empty token.
func extractToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", true
	}
	return strings.TrimSpace(parts[1]), true
}
