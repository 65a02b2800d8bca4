package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/user/vidcatalog/internal/config"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "vidcatalog"

var ErrInvalidSession = errors.New("invalid or expired session")

// Claims is the payload of an admin session token
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Admin is the capability granted to requests carrying a valid session
type Admin struct {
	Username  string
	SessionID string
	ExpiresAt time.Time
}

type adminKey struct{}

// WithAdmin returns a context carrying the admin capability
func WithAdmin(ctx context.Context, a Admin) context.Context {
	return context.WithValue(ctx, adminKey{}, a)
}

// AdminFrom extracts the admin capability from ctx
func AdminFrom(ctx context.Context) (Admin, bool) {
	a, ok := ctx.Value(adminKey{}).(Admin)
	return a, ok
}

// Authenticator checks the shared admin credential and issues session tokens
type Authenticator struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewAuthenticator hashes the configured password once so it is never kept in plain text
func NewAuthenticator(cfg *config.AdminConfig) (*Authenticator, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}
	return &Authenticator{
		username:     cfg.Username,
		passwordHash: hash,
		secret:       []byte(cfg.SessionSecret),
		ttl:          cfg.SessionTTL,
		now:          time.Now,
	}, nil
}

// TTL returns how long an issued session stays valid
func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}

// CheckCredentials reports whether username and password match the admin credential
func (a *Authenticator) CheckCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	return userOK && passErr == nil
}

// IssueToken signs a new session token for the admin
func (a *Authenticator) IssueToken() (string, error) {
	now := a.now()
	claims := &Claims{
		Username: a.username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   a.username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// ParseToken validates a session token and returns the admin it grants
func (a *Authenticator) ParseToken(token string) (Admin, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return Admin{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Username != a.username {
		return Admin{}, ErrInvalidSession
	}

	return Admin{
		Username:  claims.Username,
		SessionID: claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
