package model

import "time"

// Admin is the persisted principal record for a dashboard administrator.
// RefreshToken is a single rotation slot: at most one live refresh token
// per admin, and writing a new one invalidates the previous value.
type Admin struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Active       bool       `json:"active"`
	RefreshToken *string    `json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PublicAdmin is the outward projection of an Admin. The password hash and
// the refresh token slot never leave the repository boundary.
type PublicAdmin struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        Role       `json:"role"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (a Admin) Public() PublicAdmin {
	return PublicAdmin{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		Role:        a.Role,
		Active:      a.Active,
		LastLoginAt: a.LastLoginAt,
	}
}

// AuthClaims is the verified content of an access token, attached to the
// request context by the auth middleware.
type AuthClaims struct {
	AdminID     string `json:"sub"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	Role        Role   `json:"role"`
}

// LoginResult is the login/refresh response body. The refresh token itself
// travels only in the HttpOnly cookie.
type LoginResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	Admin       *PublicAdmin `json:"admin,omitempty"`
}
