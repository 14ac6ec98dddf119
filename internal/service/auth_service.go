package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/edutech-ops/chromebook-helpdesk/internal/auth"
	"github.com/edutech-ops/chromebook-helpdesk/internal/config"
	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	"github.com/edutech-ops/chromebook-helpdesk/internal/repository"
	apperrors "github.com/edutech-ops/chromebook-helpdesk/pkg/util/errorutil"
)

// AuthService authenticates help-desk operators.
type AuthService struct {
	operators  repository.OperatorRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	OperatorRepo repository.OperatorRepository
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	s := &AuthService{
		operators:  deps.OperatorRepo,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Login verifies operator credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Operator, *domain.Token, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, nil, apperrors.NewValidationError("email e senha são obrigatórios", nil)
	}

	operator, err := s.operators.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, err
	}
	if err := auth.ComparePassword(operator.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, err := s.tokenMgr.GenerateToken(operator)
	if err != nil {
		return nil, nil, err
	}

	signedIn := s.now()
	if err := s.operators.TouchLastSignedIn(ctx, operator.ID, signedIn); err != nil {
		s.logger.Warn("record operator sign-in", zap.Int64("operator_id", operator.ID), zap.Error(err))
	} else {
		operator.LastSignedIn = &signedIn
	}
	return operator, token, nil
}

// BootstrapAdmin upserts the configured admin account. A missing store or
// incomplete configuration is logged and skipped.
func (s *AuthService) BootstrapAdmin(ctx context.Context, cfg config.AuthConfig) error {
	email := strings.TrimSpace(cfg.BootstrapAdminEmail)
	if email == "" || cfg.BootstrapAdminPass == "" {
		return nil
	}

	hash, err := auth.HashPassword(cfg.BootstrapAdminPass, s.bcryptCost)
	if err != nil {
		return err
	}
	operator := &domain.Operator{
		Name:         cfg.BootstrapAdminName,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.OperatorRoleAdmin,
	}
	if err := s.operators.Upsert(ctx, operator); err != nil {
		if errors.Is(err, apperrors.ErrStoreUnavailable) {
			s.logger.Warn("skipping admin bootstrap: store unavailable")
			return nil
		}
		return err
	}
	s.logger.Info("admin operator ready", zap.Int64("operator_id", operator.ID), zap.String("email", email))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
