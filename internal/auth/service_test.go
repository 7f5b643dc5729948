package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "storefront",
	ExpirationMinutes: 30,
}

func TestServiceLoginMintsRoleClaim(t *testing.T) {
	password := "admin-secret"
	user := &models.User{
		ID:           uuid.New(),
		Name:         "Admin",
		Email:        "admin@example.com",
		PasswordHash: mustHashPassword(t, password),
		Role:         enums.RoleAdmin,
	}
	svc, sessions := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "  Admin@Example.com ", Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if !claims.IsAdmin() {
		t.Fatalf("expected admin role claim, got %s", claims.Role)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id %s, got %s", user.ID, claims.UserID)
	}
	if sessions.generated[claims.ID] != user.ID {
		t.Fatalf("expected refresh session stored under jti %s", claims.ID)
	}
	if resp.RefreshToken == "" || resp.User == nil || resp.User.LastLoginAt == nil {
		t.Fatalf("expected refresh token and last login in response, got %+v", resp)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: mustHashPassword(t, "right-password"),
		Role:         enums.RoleUser,
	}
	passwordless := &models.User{ID: uuid.New(), Email: "oauth@example.com", Role: enums.RoleUser}

	cases := map[string]struct {
		user  *models.User
		email string
		pass  string
	}{
		"wrong password":  {user: user, email: user.Email, pass: "wrong-password"},
		"unknown email":   {user: nil, email: "ghost@example.com", pass: "anything"},
		"no password set": {user: passwordless, email: passwordless.Email, pass: "anything"},
		"blank email":     {user: user, email: "   ", pass: "right-password"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _ := buildTestService(t, tc.user)
			_, err := svc.Login(context.Background(), LoginRequest{Email: tc.email, Password: tc.pass})
			if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	password := "user-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: mustHashPassword(t, password),
		Role:         enums.RoleUser,
	}
	svc, sessions := buildTestService(t, user)
	ctx := context.Background()

	login, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	pair, err := svc.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.RefreshToken == login.RefreshToken {
		t.Fatal("expected a new refresh token")
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, pair.AccessToken)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if _, ok := sessions.generated[claims.ID]; !ok {
		t.Fatal("expected refreshed token to carry the rotated access id")
	}

	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected replayed refresh to be unauthorized, got %v", err)
	}
}

func TestServiceLogoutRevokes(t *testing.T) {
	svc, sessions := buildTestService(t, nil)
	if err := svc.Logout(context.Background(), "access-1"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "access-1" {
		t.Fatalf("expected access-1 revoked, got %v", sessions.revoked)
	}
	if err := svc.Logout(context.Background(), ""); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for empty access id, got %v", err)
	}
}

func buildTestService(t *testing.T, user *models.User) (Service, *stubSessionManager) {
	t.Helper()
	sessions := &stubSessionManager{generated: map[string]uuid.UUID{}, tokens: map[string]string{}}
	svc, err := NewService(ServiceParams{
		UserRepo:       stubUserRepo{user: user},
		SessionManager: sessions,
		JWTConfig:      testJWT,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessions
}

func mustHashPassword(t *testing.T, password string) *string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &hash
}

type stubUserRepo struct {
	user *models.User
}

func (s stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s stubUserRepo) ReplacePasswordHash(_ context.Context, id uuid.UUID, oldHash, newHash string) (bool, error) {
	if s.user == nil || s.user.ID != id || s.user.PasswordHash == nil || *s.user.PasswordHash != oldHash {
		return false, nil
	}
	s.user.PasswordHash = &newHash
	return true, nil
}

func (s stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

type stubSessionManager struct {
	generated map[string]uuid.UUID
	tokens    map[string]string
	revoked   []string
}

func (s *stubSessionManager) Generate(_ context.Context, userID uuid.UUID, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.generated[accessID] = userID
	s.tokens[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error) {
	if s.tokens[oldAccessID] != provided || s.generated[oldAccessID] != userID {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.tokens, oldAccessID)
	next := session.NewAccessID()
	token, err := s.Generate(ctx, userID, next)
	return next, token, err
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	delete(s.tokens, accessID)
	return nil
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	weak := mustHashPassword(t, "correct horse battery")
	user := &models.User{ID: uuid.New(), Email: "weak@example.com", Role: enums.RoleUser, PasswordHash: weak}
	sessions := &stubSessionManager{generated: map[string]uuid.UUID{}, tokens: map[string]string{}}
	stronger := config.PasswordConfig{ArgonMemoryKB: 16, ArgonTime: 2, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
	svc, err := NewService(ServiceParams{
		UserRepo:       stubUserRepo{user: user},
		SessionManager: sessions,
		JWTConfig:      testJWT,
		PasswordConfig: stronger,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "weak@example.com", Password: "correct horse battery"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if *user.PasswordHash == *weak {
		t.Fatal("expected hash to be upgraded")
	}
	if security.NeedsRehash(*user.PasswordHash, stronger) {
		t.Fatalf("upgraded hash still weak: %s", *user.PasswordHash)
	}
	ok, err := security.VerifyPassword("correct horse battery", *user.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("upgraded hash must verify, ok=%v err=%v", ok, err)
	}
}
