package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bracketops/tournament-engine/models"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(userID uuid.UUID, role models.UserRole) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"user_id": userID.String(),
		"role":    string(role),
		"name":    "tester",
		"exp":     now.Add(time.Hour).Unix(),
		"iat":     now.Unix(),
	}
}

func TestAuthenticateStampsIdentity(t *testing.T) {
	authn := NewAuthenticator("secret")
	userID := uuid.New()

	var gotID uuid.UUID
	var gotRole models.UserRole
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		gotID = id
		role, ok := RoleFromContext(r.Context())
		require.True(t, ok)
		gotRole = role
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, "secret", validClaims(userID, models.RoleAdmin)))
	w := httptest.NewRecorder()
	authn.Authenticate(next).ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, userID, gotID)
	require.Equal(t, models.RoleAdmin, gotRole)
}

func TestAuthenticateRejections(t *testing.T) {
	authn := NewAuthenticator("secret")
	userID := uuid.New()

	expired := validClaims(userID, models.RoleUser)
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	badRole := validClaims(userID, models.RoleUser)
	badRole["role"] = "superuser"

	noUser := validClaims(userID, models.RoleUser)
	delete(noUser, "user_id")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.token"},
		{"wrong secret", "Bearer " + signToken(t, "other", validClaims(userID, models.RoleUser))},
		{"expired", "Bearer " + signToken(t, "secret", expired)},
		{"unknown role", "Bearer " + signToken(t, "secret", badRole)},
		{"missing user id", "Bearer " + signToken(t, "secret", noUser)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("next handler must not run")
			})
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			authn.Authenticate(next).ServeHTTP(w, r)
			require.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	authn := NewAuthenticator("secret")
	guard := RequireRole(models.RoleAdmin)

	run := func(role models.UserRole) *httptest.ResponseRecorder {
		called := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})
		r := httptest.NewRequest(http.MethodPost, "/games", nil)
		r.Header.Set("Authorization", "Bearer "+signToken(t, "secret", validClaims(uuid.New(), role)))
		w := httptest.NewRecorder()
		authn.Authenticate(guard(next)).ServeHTTP(w, r)
		if w.Code == http.StatusOK {
			require.True(t, called)
		}
		return w
	}

	require.Equal(t, http.StatusOK, run(models.RoleAdmin).Code)
	require.Equal(t, http.StatusForbidden, run(models.RoleUser).Code)
}

func TestRequireRoleWithoutAuthenticate(t *testing.T) {
	guard := RequireRole(models.RoleAdmin)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})
	w := httptest.NewRecorder()
	guard(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
