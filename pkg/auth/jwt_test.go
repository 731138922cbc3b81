package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService(Config{Secret: "secret", Issuer: "crm-api", TTL: time.Hour})
	userID, orgID := uuid.New(), uuid.New()

	token, expiresAt, err := svc.GenerateToken(userID, orgID, "admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)

	gotUser, err := claims.UserID()
	require.NoError(t, err)
	gotOrg, err := claims.OrgID()
	require.NoError(t, err)
	assert.Equal(t, userID, gotUser)
	assert.Equal(t, orgID, gotOrg)
	assert.Equal(t, "admin", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokensAreUnique(t *testing.T) {
	svc := NewJWTService(Config{Secret: "secret", TTL: time.Hour})
	userID, orgID := uuid.New(), uuid.New()

	a, _, err := svc.GenerateToken(userID, orgID, "user")
	require.NoError(t, err)
	b, _, err := svc.GenerateToken(userID, orgID, "user")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestValidateRejects(t *testing.T) {
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := issued
	svc := newJWTService(Config{Secret: "secret", Issuer: "crm-api", TTL: time.Hour}, func() time.Time { return clock })

	token, _, err := svc.GenerateToken(uuid.New(), uuid.New(), "user")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other := newJWTService(Config{Secret: "other", Issuer: "crm-api", TTL: time.Hour}, func() time.Time { return issued })
		_, err := other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		clock = issued.Add(2 * time.Hour)
		defer func() { clock = issued }()
		_, err := svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
