package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"advisory-cms/internal/model"
	"advisory-cms/internal/token"
)

const bcryptCost = 12

// AdminStore is the credential-store contract the session layer depends on.
// Satisfied by repository.AdminRepository and repository.MemoryAdminStore.
type AdminStore interface {
	FindByID(ctx context.Context, id string) (model.Admin, error)
	FindByEmail(ctx context.Context, email string) (model.Admin, error)
	FindByRefreshToken(ctx context.Context, refreshToken string) (model.Admin, error)
	Create(ctx context.Context, a model.Admin) error
	SetRefreshToken(ctx context.Context, adminID string, refreshToken string, loginAt time.Time) error
	ClearRefreshToken(ctx context.Context, refreshToken string) error
	UpdateProfile(ctx context.Context, adminID string, email string, displayName string) error
	UpdatePassword(ctx context.Context, adminID string, passwordHash string) error
	Count(ctx context.Context) (int, error)
}

// AuthService orchestrates the session state machine: login issues and
// stores a refresh token, refresh rotates it, logout clears it. The stored
// slot is what makes refresh tokens revocable before their signed expiry.
type AuthService struct {
	store  AdminStore
	tokens *token.Manager
}

func NewAuthService(store AdminStore, tokens *token.Manager) *AuthService {
	return &AuthService{store: store, tokens: tokens}
}

// SessionTokens carries a freshly minted pair plus the body payload.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
	Result       model.LoginResult
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (SessionTokens, error) {
	admin, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		// Burn a bcrypt comparison anyway so response timing does not
		// reveal whether the identity exists.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$12$000000000000000000000u0000000000000000000000000000000"), []byte(password))
		return SessionTokens{}, model.ErrInvalidCredentials
	}

	if !admin.Active {
		return SessionTokens{}, model.ErrAccountDeactivated
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return SessionTokens{}, model.ErrInvalidCredentials
	}

	return s.issueSession(ctx, admin)
}

// Refresh validates the presented refresh token against both its signature
// and the stored slot. The byte-equality check is the revocation point: a
// token that was rotated away or cleared by logout fails here even while
// still inside its signed expiry window.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (SessionTokens, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return SessionTokens{}, model.ErrMissingToken
	}

	adminID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return SessionTokens{}, err
	}

	admin, err := s.store.FindByID(ctx, adminID)
	if err != nil {
		return SessionTokens{}, model.ErrRevokedToken
	}

	if !admin.Active {
		return SessionTokens{}, model.ErrAccountDeactivated
	}

	if admin.RefreshToken == nil ||
		subtle.ConstantTimeCompare([]byte(*admin.RefreshToken), []byte(refreshToken)) != 1 {
		return SessionTokens{}, model.ErrRevokedToken
	}

	return s.issueSession(ctx, admin)
}

// Logout clears the slot matching the presented token. It looks up by token
// value rather than authenticated identity because the caller's access token
// may already be expired. A missing or unknown token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.store.ClearRefreshToken(ctx, refreshToken)
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.PublicAdmin, error) {
	email := strings.TrimSpace(req.Email)
	password := strings.TrimSpace(req.Password)

	if _, err := mail.ParseAddress(email); err != nil {
		return model.PublicAdmin{}, fmt.Errorf("%w: invalid email", model.ErrInvalidInput)
	}
	if len(password) < 8 {
		return model.PublicAdmin{}, fmt.Errorf("%w: password must be at least 8 characters", model.ErrInvalidInput)
	}

	role := model.RoleAdmin
	if req.Role != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			return model.PublicAdmin{}, fmt.Errorf("%w: invalid role", model.ErrInvalidInput)
		}
		role = parsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return model.PublicAdmin{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	admin := model.Admin{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(email),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, admin); err != nil {
		return model.PublicAdmin{}, err
	}

	return admin.Public(), nil
}

func (s *AuthService) GetProfile(ctx context.Context, adminID string) (model.PublicAdmin, error) {
	admin, err := s.store.FindByID(ctx, adminID)
	if err != nil {
		return model.PublicAdmin{}, err
	}
	return admin.Public(), nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, adminID string, req model.UpdateProfileRequest) (model.PublicAdmin, error) {
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return model.PublicAdmin{}, fmt.Errorf("%w: invalid email", model.ErrInvalidInput)
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		return model.PublicAdmin{}, fmt.Errorf("%w: display name is required", model.ErrInvalidInput)
	}

	if err := s.store.UpdateProfile(ctx, adminID, strings.ToLower(email), req.DisplayName); err != nil {
		return model.PublicAdmin{}, err
	}

	return s.GetProfile(ctx, adminID)
}

// ChangePassword re-verifies the current secret before accepting a new one.
// The repository clears the refresh-token slot on success, which ends every
// other session for this admin.
func (s *AuthService) ChangePassword(ctx context.Context, adminID string, current string, next string) error {
	if len(strings.TrimSpace(next)) < 8 {
		return fmt.Errorf("%w: new password must be at least 8 characters", model.ErrInvalidInput)
	}

	admin, err := s.store.FindByID(ctx, adminID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(current)); err != nil {
		return model.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(next)), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.UpdatePassword(ctx, admin.ID, string(hash))
}

// VerifySession is the auth gate's storage recheck: the principal must still
// exist and be active. Access tokens are not individually revocable, so this
// is the only place deactivation takes effect before expiry.
func (s *AuthService) VerifySession(ctx context.Context, claims *model.AuthClaims) error {
	admin, err := s.store.FindByID(ctx, claims.AdminID)
	if err != nil || !admin.Active {
		return model.ErrInvalidSession
	}
	return nil
}

// RefreshTTL exposes the refresh lifetime for the cookie Max-Age.
func (s *AuthService) RefreshTTL() time.Duration {
	return s.tokens.RefreshTTL()
}

// SeedInitialAdmin creates a bootstrap super_admin when the store is empty
// so a fresh deployment has a way in.
func (s *AuthService) SeedInitialAdmin(ctx context.Context, email string, password string) error {
	count, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	_, err = s.Register(ctx, model.RegisterRequest{
		Email:       email,
		DisplayName: "Administrator",
		Password:    password,
		Role:        string(model.RoleSuperAdmin),
	})
	if err != nil {
		return fmt.Errorf("seed initial admin: %w", err)
	}

	slog.Info("seeded initial super_admin", "email", email)
	return nil
}

func (s *AuthService) issueSession(ctx context.Context, admin model.Admin) (SessionTokens, error) {
	accessToken, err := s.tokens.IssueAccess(admin)
	if err != nil {
		return SessionTokens{}, err
	}

	refreshToken, err := s.tokens.IssueRefresh(admin)
	if err != nil {
		return SessionTokens{}, err
	}

	now := time.Now().UTC()
	if err := s.store.SetRefreshToken(ctx, admin.ID, refreshToken, now); err != nil {
		return SessionTokens{}, err
	}

	public := admin.Public()
	public.LastLoginAt = &now

	return SessionTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Result: model.LoginResult{
			AccessToken: accessToken,
			TokenType:   "Bearer",
			ExpiresIn:   int64(s.tokens.AccessTTL().Seconds()),
			Admin:       &public,
		},
	}, nil
}
