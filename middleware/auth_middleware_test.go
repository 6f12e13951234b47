package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/services"
)

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Claims), args.Error(1)
}

func subjectClaims(sub string) *Claims {
	return &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}
}

func serve(m *AuthMiddleware, header string) (*httptest.ResponseRecorder, string, bool) {
	var userID string
	called := false
	handler := m.Identify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		userID = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, userID, called
}

func TestIdentify(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token sets user id", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		mockValidator.On("ValidateToken", mock.Anything, "valid-token").Return(subjectClaims("user-123"), nil)

		w, userID, called := serve(NewAuthMiddleware(mockValidator, true, logger), "Bearer valid-token")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, called)
		assert.Equal(t, "user-123", userID)
		mockValidator.AssertExpectations(t)
	})

	t.Run("missing token passes through when optional", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)

		w, userID, called := serve(NewAuthMiddleware(mockValidator, false, logger), "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, called)
		assert.Empty(t, userID)
		mockValidator.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
	})

	t.Run("missing token returns 401 when required", func(t *testing.T) {
		w, _, called := serve(NewAuthMiddleware(new(MockTokenValidator), true, logger), "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})

	t.Run("invalid authorization header format returns 401", func(t *testing.T) {
		w, _, called := serve(NewAuthMiddleware(new(MockTokenValidator), false, logger), "Basic dXNlcjpwYXNz")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})

	t.Run("invalid token returns 401 even when optional", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		mockValidator.On("ValidateToken", mock.Anything, "bad").Return(nil, services.ErrInvalidIdentity)

		w, _, called := serve(NewAuthMiddleware(mockValidator, false, logger), "Bearer bad")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid or expired token")
		assert.False(t, called)
	})
}

func TestJWTValidator(t *testing.T) {
	ctx := context.Background()
	v := NewJWTValidator("test-secret", "tender-gateway")

	t.Run("round trip", func(t *testing.T) {
		token, err := v.SignToken("user-42", time.Hour)
		require.NoError(t, err)

		claims, err := v.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "user-42", claims.Subject)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := v.SignToken("user-42", -time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		require.Error(t, err)
		assert.True(t, services.IsUnauthorizedError(err))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewJWTValidator("other-secret", "tender-gateway").SignToken("user-42", time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.True(t, services.IsUnauthorizedError(err))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := NewJWTValidator("test-secret", "someone-else").SignToken("user-42", time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, err := v.SignToken("", time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("missing expiry", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-42"}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("end to end through middleware", func(t *testing.T) {
		token, err := v.SignToken("user-7", time.Hour)
		require.NoError(t, err)

		w, userID, _ := serve(NewAuthMiddleware(v, true, zap.NewNop()), "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-7", userID)
	})
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header  string
		token   string
		present bool
	}{
		{"", "", false},
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Token abc", "", true},
		{"Bearer", "", true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		token, present := extractToken(req)
		assert.Equal(t, tt.token, token, tt.header)
		assert.Equal(t, tt.present, present, tt.header)
	}
}
