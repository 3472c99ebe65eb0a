// Package auth provides authentication for the management API. It implements
// JWT-based session tokens, bcrypt password verification against the user
// table, and gin middleware for protected routes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"netmand/internal/database"
)

// ErrInvalidCredentials is returned when a login fails, regardless of
// whether the username or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service handles authentication operations: credential verification
// against the database and JWT token management.
type Service struct {
	db          *database.Database // User records for credential checks
	jwtSecret   string             // Secret key for JWT signing and verification
	tokenExpiry time.Duration      // Duration for which tokens remain valid
}

// Claims represents the JWT claims structure for authenticated users.
type Claims struct {
	UserID   uint   `json:"user_id"`  // Unique identifier for the user
	Username string `json:"username"` // Username for display and identification
	jwt.RegisteredClaims
}

// NewService creates an authentication service with a 24 hour token expiry.
// Returns a pointer to the newly created Service.
func NewService(db *database.Database, jwtSecret string) *Service {
	return &Service{
		db:          db,
		jwtSecret:   jwtSecret,
		tokenExpiry: 24 * time.Hour,
	}
}

// NewServiceWithExpiry creates an authentication service with a custom token
// expiry duration. Returns a pointer to the newly created Service.
func NewServiceWithExpiry(db *database.Database, jwtSecret string, tokenExpiry time.Duration) *Service {
	return &Service{
		db:          db,
		jwtSecret:   jwtSecret,
		tokenExpiry: tokenExpiry,
	}
}

// Authenticate verifies a username and password against the user table and
// returns a signed session token on success. Lookup misses, inactive
// accounts, and password mismatches all collapse into ErrInvalidCredentials
// so a caller cannot probe which usernames exist.
func (s *Service) Authenticate(username, password string) (string, error) {
	user, err := s.db.GetUserByUsername(username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.Active {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	if err := s.db.UpdateUserLastLogin(user.ID); err != nil {
		return "", fmt.Errorf("failed to update last login: %w", err)
	}

	return s.generateToken(user.ID, user.Username)
}

// ValidateToken parses and validates a JWT token string.
// It verifies the token signature, expiration, and other standard claims.
// Returns the parsed claims if the token is valid.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token claims")
}

// EnsureAdmin creates the bootstrap admin account when the user table is
// empty. Nothing happens when users already exist or when no bootstrap
// password is configured.
func (s *Service) EnsureAdmin(username, password string) error {
	count, err := s.db.CountUsers()
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 || password == "" {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &database.User{
		Username: username,
		Password: string(hashed),
		Role:     "admin",
		Active:   true,
	}
	if err := s.db.CreateUser(user); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

// generateToken creates a new signed JWT for the specified user.
func (s *Service) generateToken(userID uint, username string) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "netmand",
			Subject:   fmt.Sprintf("user-%d", userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
