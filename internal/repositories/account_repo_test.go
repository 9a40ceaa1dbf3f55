package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prudhvinik1/fieldsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_Lifecycle(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresAccountRepository(pool)
	ctx := context.Background()

	// ACT: Create an operator
	account := &models.Account{
		Email:        "operator-" + uuid.New().String() + "@example.com",
		DisplayName:  "Field Operator",
		PasswordHash: "test-hash",
	}
	require.NoError(t, repo.Create(ctx, account))

	// ASSERT
	assert.NotEqual(t, uuid.Nil, account.ID)
	assert.False(t, account.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, account.Email)
	require.NoError(t, err)
	assert.Equal(t, account.ID, byEmail.ID)
	assert.Equal(t, "Field Operator", byEmail.DisplayName)

	account.DisplayName = "Lead Operator"
	require.NoError(t, repo.Update(ctx, account))
	byID, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lead Operator", byID.DisplayName)

	// Soft delete hides the account
	require.NoError(t, repo.Delete(ctx, account.ID))
	_, err = repo.GetByID(ctx, account.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, account.ID), ErrNotFound)
}
