package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netmand/internal/database"
)

func newTestService(t *testing.T) (*Service, *database.Database) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return NewService(db, "test-secret"), db
}

func TestEnsureAdmin(t *testing.T) {
	t.Run("should create the bootstrap user once", func(t *testing.T) {
		svc, db := newTestService(t)

		require.NoError(t, svc.EnsureAdmin("admin", "hunter2"))

		user, err := db.GetUserByUsername("admin")
		require.NoError(t, err)
		assert.Equal(t, "admin", user.Role)
		assert.True(t, user.Active)
		assert.NotEqual(t, "hunter2", user.Password)

		// A second call must not duplicate or overwrite.
		require.NoError(t, svc.EnsureAdmin("admin", "different"))
		count, err := db.CountUsers()
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("should do nothing without a password", func(t *testing.T) {
		svc, db := newTestService(t)

		require.NoError(t, svc.EnsureAdmin("admin", ""))

		count, err := db.CountUsers()
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})
}

func TestAuthenticate(t *testing.T) {
	t.Run("should return a valid token for correct credentials", func(t *testing.T) {
		svc, _ := newTestService(t)
		require.NoError(t, svc.EnsureAdmin("admin", "hunter2"))

		token, err := svc.Authenticate("admin", "hunter2")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Username)
	})

	t.Run("should record last login", func(t *testing.T) {
		svc, db := newTestService(t)
		require.NoError(t, svc.EnsureAdmin("admin", "hunter2"))

		_, err := svc.Authenticate("admin", "hunter2")
		require.NoError(t, err)

		user, err := db.GetUserByUsername("admin")
		require.NoError(t, err)
		assert.NotNil(t, user.LastLogin)
	})

	t.Run("should reject a wrong password", func(t *testing.T) {
		svc, _ := newTestService(t)
		require.NoError(t, svc.EnsureAdmin("admin", "hunter2"))

		_, err := svc.Authenticate("admin", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("should reject an unknown user", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Authenticate("nobody", "hunter2")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("should reject an inactive user", func(t *testing.T) {
		svc, db := newTestService(t)
		require.NoError(t, svc.EnsureAdmin("admin", "hunter2"))
		user, err := db.GetUserByUsername("admin")
		require.NoError(t, err)
		user.Active = false
		require.NoError(t, db.DB.Save(user).Error)

		_, err = svc.Authenticate("admin", "hunter2")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestValidateToken(t *testing.T) {
	t.Run("should reject garbage", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.ValidateToken("not-a-token")
		assert.Error(t, err)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		svc, _ := newTestService(t)
		require.NoError(t, svc.EnsureAdmin("admin", "hunter2"))
		token, err := svc.Authenticate("admin", "hunter2")
		require.NoError(t, err)

		db, err := database.New(filepath.Join(t.TempDir(), "other.db"))
		require.NoError(t, err)
		other := NewService(db, "other-secret")

		_, err = other.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		svc, db := newTestService(t)
		require.NoError(t, svc.EnsureAdmin("admin", "hunter2"))
		expired := NewServiceWithExpiry(db, "test-secret", -time.Minute)
		token, err := expired.Authenticate("admin", "hunter2")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(svc *Service) *gin.Engine {
		router := gin.New()
		router.GET("/secure", svc.RequireAuth(), func(c *gin.Context) {
			claims := ClaimsFromContext(c)
			require.NotNil(t, claims)
			c.JSON(http.StatusOK, gin.H{"username": claims.Username})
		})
		return router
	}

	t.Run("should pass a valid bearer token through", func(t *testing.T) {
		svc, _ := newTestService(t)
		require.NoError(t, svc.EnsureAdmin("admin", "hunter2"))
		token, err := svc.Authenticate("admin", "hunter2")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		newRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "admin")
	})

	t.Run("should reject a missing header", func(t *testing.T) {
		svc, _ := newTestService(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		newRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject a malformed header", func(t *testing.T) {
		svc, _ := newTestService(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		req.Header.Set("Authorization", "Token abc")
		newRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject an invalid token", func(t *testing.T) {
		svc, _ := newTestService(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		newRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
