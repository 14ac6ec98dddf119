package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutech-ops/chromebook-helpdesk/internal/config"
	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	"github.com/edutech-ops/chromebook-helpdesk/internal/repository/memory"
	apperrors "github.com/edutech-ops/chromebook-helpdesk/pkg/util/errorutil"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 30,
		BcryptCost:            4,
		BootstrapAdminName:    "Admin",
		BootstrapAdminEmail:   "admin@escola.org",
		BootstrapAdminPass:    "s3nha-forte",
	}
}

func TestBootstrapAdminAndLogin(t *testing.T) {
	operators := memory.NewOperatorRepository()
	signedIn := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	svc := NewAuthService(testAuthConfig(), AuthDependencies{
		OperatorRepo: operators,
		Now:          func() time.Time { return signedIn },
	})
	ctx := context.Background()

	require.NoError(t, svc.BootstrapAdmin(ctx, testAuthConfig()))

	operator, token, err := svc.Login(ctx, "ADMIN@escola.org", "s3nha-forte")
	require.NoError(t, err)
	assert.Equal(t, domain.OperatorRoleAdmin, operator.Role)
	require.NotNil(t, operator.LastSignedIn)
	assert.Equal(t, signedIn, *operator.LastSignedIn)

	claims, err := svc.TokenManager().ParseToken(token.Value)
	require.NoError(t, err)
	assert.Equal(t, operator.ID, claims.OperatorID)
	assert.Equal(t, domain.OperatorRoleAdmin, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	operators := memory.NewOperatorRepository()
	svc := NewAuthService(testAuthConfig(), AuthDependencies{OperatorRepo: operators})
	ctx := context.Background()
	require.NoError(t, svc.BootstrapAdmin(ctx, testAuthConfig()))

	_, _, err := svc.Login(ctx, "admin@escola.org", "errada")
	assert.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)

	_, _, err = svc.Login(ctx, "ninguem@escola.org", "s3nha-forte")
	assert.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)

	_, _, err = svc.Login(ctx, "", "")
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestBootstrapAdminSkipsWithoutStore(t *testing.T) {
	operators := memory.NewOperatorRepository()
	operators.Err = apperrors.ErrStoreUnavailable
	svc := NewAuthService(testAuthConfig(), AuthDependencies{OperatorRepo: operators})

	assert.NoError(t, svc.BootstrapAdmin(context.Background(), testAuthConfig()))

	cfg := testAuthConfig()
	cfg.BootstrapAdminEmail = ""
	assert.NoError(t, svc.BootstrapAdmin(context.Background(), cfg))
}
