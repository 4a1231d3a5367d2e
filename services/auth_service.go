package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akinalp/custodian/database"
	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg"
	"github.com/akinalp/custodian/pkg/email"
	"github.com/akinalp/custodian/repository"
)

// ResetTokenTTL, şifre sıfırlama link'inin geçerlilik süresi.
const ResetTokenTTL = 20 * time.Minute

// UserInvalidator, transaction içinde yazan service'lerin commit sonrası
// cache'i temizlemesi için. repository.CachedUserRepo karşılar.
type UserInvalidator interface {
	Invalidate(id string)
}

// AuthService, kimlik doğrulama ve token yaşam döngüsü.
type AuthService interface {
	Register(ctx context.Context, req *models.CreateUserRequest) (*models.AuthTokens, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthTokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error)
	// Logout, refresh token'ın oturumunu siler ve bağlı access token'ı iptal eder.
	// claims nil değilse sunulan access token da iptal edilir.
	Logout(ctx context.Context, refreshToken string, claims *models.TokenClaims) error
	// ValidateAccessToken, imza ve süre kontrolünden sonra revocation store'a bakar.
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
	// ChangePassword, mevcut oturum (currentJTI) hariç tüm oturumları iptal eder.
	ChangePassword(ctx context.Context, userID, currentJTI string, req *models.ChangePasswordRequest) error
	ForgotPassword(ctx context.Context, req *models.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error
}

// AuthConfig, token süreleri ve imza anahtarı.
type AuthConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type authService struct {
	db          *sql.DB
	users       repository.UserRepository
	cache       UserInvalidator
	sessionRepo repository.SessionRepository
	resetRepo   repository.PasswordResetRepository
	revoker     TokenRevoker
	throttle    *Throttle
	mailer      email.Sender
	cfg         AuthConfig
	clock       clock.Clock
	log         *zap.Logger
}

// NewAuthService, constructor. users cache'li repo olmalıdır; cache aynı
// nesnenin Invalidate'i olabilir.
func NewAuthService(
	db *sql.DB,
	users repository.UserRepository,
	cache UserInvalidator,
	sessionRepo repository.SessionRepository,
	resetRepo repository.PasswordResetRepository,
	revoker TokenRevoker,
	throttle *Throttle,
	mailer email.Sender,
	cfg AuthConfig,
	clk clock.Clock,
	log *zap.Logger,
) AuthService {
	if cfg.Issuer == "" {
		cfg.Issuer = "custodian"
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &authService{
		db:          db,
		users:       users,
		cache:       cache,
		sessionRepo: sessionRepo,
		resetRepo:   resetRepo,
		revoker:     revoker,
		throttle:    throttle,
		mailer:      mailer,
		cfg:         cfg,
		clock:       clk,
		log:         log.Named("auth"),
	}
}

func (s *authService) Register(ctx context.Context, req *models.CreateUserRequest) (*models.AuthTokens, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	var displayName *string
	if req.DisplayName != "" {
		displayName = &req.DisplayName
	}

	now := s.clock.Now().UTC()
	user := &models.User{
		Username:     req.Username,
		DisplayName:  displayName,
		Email:        req.Email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))
	return s.issueTokens(ctx, user)
}

// Login, limiter'a DB'den önce danışır. Başarılı girişte pencere sıfırlanır.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthTokens, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if err := s.throttle.Check(ctx, req.Username, ActionLogin); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if !checkPassword(user.PasswordHash, req.Password) {
		return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
	}

	if !user.CanAuthenticate() {
		return nil, fmt.Errorf("%w: account is %s", pkg.ErrForbidden, user.LifecycleState())
	}

	s.throttle.Reset(req.Username, ActionLogin)
	return s.issueTokens(ctx, user)
}

// RefreshToken, oturumu döndürür (rotate): yeni refresh + access token,
// eski access JTI iptal edilir.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: refresh token is required", pkg.ErrBadRequest)
	}

	session, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid refresh token", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	now := s.clock.Now()
	if !now.Before(session.ExpiresAt) {
		if err := s.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: refresh token expired", pkg.ErrUnauthorized)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if !user.CanAuthenticate() {
		if err := s.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: account is %s", pkg.ErrForbidden, user.LifecycleState())
	}

	oldRefresh, oldJTI, oldExp := session.RefreshToken, session.AccessJTI, session.AccessExpiresAt

	access, jti, accessExp, err := s.signAccessToken(user, now)
	if err != nil {
		return nil, err
	}
	refresh, err := randomToken(32)
	if err != nil {
		return nil, err
	}

	session.RefreshToken = refresh
	session.AccessJTI = jti
	session.AccessExpiresAt = accessExp
	session.ExpiresAt = now.Add(s.cfg.RefreshExpiry)
	// Aynı refresh token ile eşzamanlı iki istekten sadece biri döndürür;
	// diğerinin imzaladığı access token hiçbir oturuma bağlanmadan atılır.
	if err := s.sessionRepo.Rotate(ctx, session, oldRefresh); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: refresh token already used", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if err := s.revoker.Revoke(ctx, oldJTI, user.ID, oldExp); err != nil {
		return nil, err
	}

	return &models.AuthTokens{AccessToken: access, RefreshToken: refresh, User: publicUser(user)}, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string, claims *models.TokenClaims) error {
	if claims != nil && claims.ExpiresAt != nil {
		if err := s.revoker.Revoke(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time); err != nil {
			return err
		}
	}

	if refreshToken == "" {
		return nil
	}

	session, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil
		}
		return err
	}

	// Başkasının refresh token'ı ile logout yapılamaz.
	if claims != nil && claims.UserID != session.UserID {
		return fmt.Errorf("%w: session does not belong to caller", pkg.ErrForbidden)
	}

	if err := s.revoker.Revoke(ctx, session.AccessJTI, session.UserID, session.AccessExpiresAt); err != nil {
		return err
	}
	return s.sessionRepo.DeleteByID(ctx, session.ID)
}

func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(s.cfg.Secret), nil
		},
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}

	if s.revoker.IsRevoked(claims.ID) {
		return nil, pkg.ErrTokenRevoked
	}

	return claims, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID, currentJTI string, req *models.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if err := s.throttle.Check(ctx, userID, ActionChangePassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !checkPassword(user.PasswordHash, req.CurrentPassword) {
		return fmt.Errorf("%w: current password is incorrect", pkg.ErrUnauthorized)
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	revoked, err := s.replacePassword(ctx, userID, hash, currentJTI)
	if err != nil {
		return err
	}

	s.log.Info("password changed",
		zap.String("user_id", userID),
		zap.Int("revoked_sessions", len(revoked)),
	)
	return nil
}

// ForgotPassword, email'i limiter'a DB'den önce sorar. Kullanıcı yoksa ya
// da aktif değilse sessizce başarı döner (email enumeration yok).
func (s *authService) ForgotPassword(ctx context.Context, req *models.ForgotPasswordRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if err := s.throttle.Check(ctx, req.Email, ActionPasswordReset); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil
		}
		return err
	}
	if !user.CanAuthenticate() {
		return nil
	}

	token, err := randomToken(32)
	if err != nil {
		return err
	}

	if err := s.resetRepo.DeleteByUserID(ctx, user.ID); err != nil {
		return err
	}
	now := s.clock.Now()
	if err := s.resetRepo.Create(ctx, &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: now.Add(ResetTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, req.Email, token, ResetTokenTTL); err != nil {
		s.log.Error("password reset email failed", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("%w: could not send reset email", pkg.ErrInternal)
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	record, err := s.resetRepo.GetByTokenHash(ctx, hashToken(strings.TrimSpace(req.Token)))
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return fmt.Errorf("%w: invalid or expired reset token", pkg.ErrBadRequest)
		}
		return err
	}
	if !s.clock.Now().Before(record.ExpiresAt) {
		if err := s.resetRepo.DeleteByID(ctx, record.ID); err != nil {
			s.log.Warn("failed to delete expired reset token", zap.String("user_id", record.UserID), zap.Error(err))
		}
		return fmt.Errorf("%w: invalid or expired reset token", pkg.ErrBadRequest)
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		return err
	}
	if !user.CanAuthenticate() {
		return fmt.Errorf("%w: account is %s", pkg.ErrForbidden, user.LifecycleState())
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	revoked, err := s.replacePassword(ctx, user.ID, hash, "")
	if err != nil {
		return err
	}

	s.log.Info("password reset",
		zap.String("user_id", user.ID),
		zap.Int("revoked_sessions", len(revoked)),
	)
	return nil
}

// replacePassword, şifreyi tek transaction içinde yazar; reset token'larını ve
// keepJTI dışındaki oturumları siler. Commit'ten sonra iptaller belleğe
// uygulanır ve cache temizlenir.
func (s *authService) replacePassword(ctx context.Context, userID, hash, keepJTI string) ([]models.RevokedToken, error) {
	var revoked []models.RevokedToken
	now := s.clock.Now()
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := repository.NewSQLiteUserRepo(tx).UpdatePassword(ctx, userID, hash, now); err != nil {
			return err
		}
		if err := repository.NewSQLiteResetTokenRepo(tx).DeleteByUserID(ctx, userID); err != nil {
			return err
		}
		var err error
		revoked, err = s.revoker.RevokeUserSessions(ctx, tx, userID, keepJTI)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.revoker.Activate(revoked)
	s.cache.Invalidate(userID)
	return revoked, nil
}

func (s *authService) issueTokens(ctx context.Context, user *models.User) (*models.AuthTokens, error) {
	now := s.clock.Now()

	access, jti, accessExp, err := s.signAccessToken(user, now)
	if err != nil {
		return nil, err
	}
	refresh, err := randomToken(32)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:          user.ID,
		RefreshToken:    refresh,
		AccessJTI:       jti,
		AccessExpiresAt: accessExp,
		ExpiresAt:       now.Add(s.cfg.RefreshExpiry),
		CreatedAt:       now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	return &models.AuthTokens{AccessToken: access, RefreshToken: refresh, User: publicUser(user)}, nil
}

func (s *authService) signAccessToken(user *models.User, now time.Time) (string, string, time.Time, error) {
	jti := uuid.NewString()
	exp := now.Add(s.cfg.AccessExpiry)

	claims := &models.TokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, jti, exp, nil
}

func publicUser(u *models.User) *models.User {
	c := u.Clone()
	c.PasswordHash = ""
	return c
}
