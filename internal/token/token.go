// Package token mints and verifies the two JWT kinds used by the admin
// session scheme: short-lived access tokens carrying identity and role, and
// longer-lived refresh tokens carrying only the admin ID. The two kinds are
// signed with separate keys, so an access-key compromise cannot forge
// refresh tokens. Verification is pure signature plus expiry checking;
// revocation is enforced at the service layer against the stored slot.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"advisory-cms/internal/model"
)

type AccessClaims struct {
	jwt.RegisteredClaims
	Email       string     `json:"email"`
	DisplayName string     `json:"name"`
	Role        model.Role `json:"role"`
}

type RefreshClaims struct {
	jwt.RegisteredClaims
}

type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewManager(accessSecret string, refreshSecret string, accessTTL time.Duration, refreshTTL time.Duration) *Manager {
	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *Manager) IssueAccess(admin model.Admin) (string, error) {
	now := time.Now().UTC()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
		Email:       admin.Email,
		DisplayName: admin.DisplayName,
		Role:        admin.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (m *Manager) IssueRefresh(admin model.Admin) (string, error) {
	now := time.Now().UTC()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

func (m *Manager) VerifyAccess(tokenString string) (*model.AuthClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenString, claims, m.accessSecret); err != nil {
		return nil, err
	}

	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, model.ErrMalformedToken
	}

	return &model.AuthClaims{
		AdminID:     claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
	}, nil
}

// VerifyRefresh returns the admin ID the refresh token was issued for.
func (m *Manager) VerifyRefresh(tokenString string) (string, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenString, claims, m.refreshSecret); err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", model.ErrMalformedToken
	}

	return claims.Subject, nil
}

func (m *Manager) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.ErrExpiredToken
		}
		return model.ErrMalformedToken
	}
	if !parsed.Valid {
		return model.ErrMalformedToken
	}

	return nil
}
