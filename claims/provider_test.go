package claims

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	provider := NewStaticProvider(map[string]Rule{
		"user-1": {Role: "admin", ResourceIDs: []string{"r1", "r2"}},
	})

	t.Run("it returns the rule for a known subject", func(t *testing.T) {
		custom, err := provider.GetCustomClaims(context.Background(), &Base{Subject: "user-1"})
		require.NoError(t, err)
		assert.Equal(t, "admin", custom.Role)
		assert.True(t, custom.CanAccessResource("r1"))
		assert.False(t, custom.CanAccessResource("r3"))
	})

	t.Run("it returns empty claims for an unknown subject", func(t *testing.T) {
		custom, err := provider.GetCustomClaims(context.Background(), &Base{Subject: "stranger"})
		require.NoError(t, err)
		assert.Empty(t, custom.ResourceIDs)
		assert.Empty(t, custom.Role)
	})
}

func TestBaseHasScope(t *testing.T) {
	base := &Base{Scopes: []string{"read:transactions", "openid"}}
	assert.True(t, base.HasScope("openid"))
	assert.False(t, base.HasScope("write:transactions"))
}
