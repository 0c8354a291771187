package store

import (
	"context"
	"os"
	"testing"

	"renthub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatID(t *testing.T) {
	assert.Equal(t, "O-00001", FormatID("O", 1))
	assert.Equal(t, "L-00042", FormatID("L", 42))
	assert.Equal(t, "B-99999", FormatID("B", 99999))
	assert.Equal(t, "S-123456", FormatID("S", 123456))
}

func TestRolePrefix(t *testing.T) {
	assert.Equal(t, "A", RolePrefix(models.RoleAdmin))
	assert.Equal(t, "S", RolePrefix(models.RoleSeller))
	assert.Equal(t, "B", RolePrefix(models.RoleBuyer))
	assert.Equal(t, "B", RolePrefix("anything-else"))
}

func TestNextIDSequentialIntegration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	s, err := NewStore(dsn)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	first, err := s.NextID(ctx, "T")
	require.NoError(t, err)
	second, err := s.NextID(ctx, "T")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Greater(t, second, first)
}
