package hipchat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenPool_Get(t *testing.T) {
	pool := NewTokenPool([]string{" a ", "", "b"}, "fallback")
	assert.Equal(t, 2, pool.Len())

	pool.pick = func(n int) int { return n - 1 }
	tok, err := pool.Get()
	require.NoError(t, err)
	assert.Equal(t, "b", tok)

	pool.pick = func(int) int { return 0 }
	tok, err = pool.Get()
	require.NoError(t, err)
	assert.Equal(t, "a", tok)
}

func TestTokenPool_Fallback(t *testing.T) {
	tok, err := NewTokenPool([]string{""}, "fallback").Get()
	require.NoError(t, err)
	assert.Equal(t, "fallback", tok)

	_, err = NewTokenPool(nil, " ").Get()
	assert.ErrorIs(t, err, ErrNoPersonalToken)
}
