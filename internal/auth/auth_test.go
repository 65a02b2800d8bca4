package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/user/vidcatalog/internal/config"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(&config.AdminConfig{
		Username:      "admin",
		Password:      "correct horse",
		SessionSecret: "0123456789abcdef0123",
		SessionTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}
	return a
}

func TestCheckCredentials(t *testing.T) {
	a := newTestAuthenticator(t)

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"valid", "admin", "correct horse", true},
		{"wrong password", "admin", "battery staple", false},
		{"wrong username", "root", "correct horse", false},
		{"empty", "", "", false},
		{"case sensitive", "Admin", "correct horse", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.CheckCredentials(tt.username, tt.password); got != tt.want {
				t.Errorf("CheckCredentials(%q, %q) = %v, want %v", tt.username, tt.password, got, tt.want)
			}
		})
	}
}

func TestPasswordIsNotKeptInPlainText(t *testing.T) {
	a := newTestAuthenticator(t)
	if strings.Contains(string(a.passwordHash), "correct horse") {
		t.Error("password hash contains the plain text password")
	}
}

func TestIssueAndParseToken(t *testing.T) {
	a := newTestAuthenticator(t)
	token, err := a.IssueToken()
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	admin, err := a.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if admin.Username != "admin" || admin.SessionID == "" {
		t.Errorf("ParseToken() = %+v", admin)
	}
}

func TestParseToken_Rejections(t *testing.T) {
	a := newTestAuthenticator(t)
	valid, _ := a.IssueToken()

	other, _ := NewAuthenticator(&config.AdminConfig{
		Username:      "admin",
		Password:      "x",
		SessionSecret: "another-secret-of-some-length",
		SessionTTL:    time.Hour,
	})
	forged, _ := other.IssueToken()

	expired := newTestAuthenticator(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _ := expired.IssueToken()

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"empty":        "",
		"wrong secret": forged,
		"expired":      stale,
		"alg none":     none,
		"tampered":     valid[:len(valid)-2] + "xx",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := a.ParseToken(token); !errors.Is(err, ErrInvalidSession) {
				t.Errorf("ParseToken() error = %v, want ErrInvalidSession", err)
			}
		})
	}
}

func TestAdminContext(t *testing.T) {
	if _, ok := AdminFrom(context.Background()); ok {
		t.Error("AdminFrom(empty) reported an admin")
	}
	ctx := WithAdmin(context.Background(), Admin{Username: "admin"})
	if a, ok := AdminFrom(ctx); !ok || a.Username != "admin" {
		t.Errorf("AdminFrom() = %+v, %v", a, ok)
	}
}

func TestLoginLimiter(t *testing.T) {
	l := NewLoginLimiter(3, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("attempt %d denied", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("fourth attempt within a minute allowed")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("other address denied")
	}

	now = now.Add(20 * time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("attempt after refill denied")
	}

	now = now.Add(time.Hour)
	l.Allow("10.0.0.3")
	if _, ok := l.visitors["10.0.0.1"]; ok {
		t.Error("idle visitor not forgotten")
	}
}
