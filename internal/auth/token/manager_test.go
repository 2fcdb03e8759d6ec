package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"

	"github.com/pysugar/hipchat-connect/internal/apperr"
	"github.com/pysugar/hipchat-connect/internal/db/dbtest"
	"github.com/pysugar/hipchat-connect/internal/db/models"
	"github.com/pysugar/hipchat-connect/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRequester struct {
	mu        sync.Mutex
	calls     int
	err       error
	expiresIn int64
	release   chan struct{}
}

func (f *fakeRequester) RequestToken(_ context.Context, inst *models.Install) (*Token, error) {
	f.mu.Lock()
	f.calls++
	n, err := f.calls, f.err
	f.mu.Unlock()

	if f.release != nil {
		<-f.release
	}
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken: fmt.Sprintf("%s-T%d", inst.OAuthID, n),
		Scope:       inst.Addon.ScopeString(),
		GroupID:     inst.GroupID,
		ExpiresIn:   f.expiresIn,
		ExpiresAt:   time.Now().Add(time.Duration(f.expiresIn) * time.Second),
	}, nil
}

func (f *fakeRequester) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func setupManager(t *testing.T, req Requester) (*Manager, *gorm.DB, *models.Install) {
	t.Helper()
	database := dbtest.New(t)
	addon := dbtest.SeedAddon(t, database, "status", "view_group", "send_notification")
	inst := &models.Install{AddonID: addon.ID, OAuthID: "abc", OAuthSecret: "xyz", GroupID: 123, InstalledAt: time.Now()}
	require.NoError(t, database.Create(inst).Error)
	return NewManager(database, NewMemoryStore(), req, "", logging.Discard()), database, inst
}

func TestManager_CacheKey(t *testing.T) {
	m := NewManager(nil, NewMemoryStore(), &fakeRequester{}, "", logging.Discard())
	assert.Equal(t, "hipchat-tokens:abc", m.CacheKey("abc"))

	custom := NewManager(nil, NewMemoryStore(), &fakeRequester{}, "tokens/", logging.Discard())
	assert.Equal(t, "tokens/abc", custom.CacheKey("abc"))
}

func TestManager_RefreshThenCacheHit(t *testing.T) {
	req := &fakeRequester{expiresIn: 3599}
	m, database, inst := setupManager(t, req)
	ctx := context.Background()

	tok, ok, err := m.GetOrRefresh(ctx, inst, true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc-T1", tok.AccessToken)
	assert.Equal(t, "send_notification view_group", tok.Scope)

	again, ok, err := m.GetOrRefresh(ctx, &models.Install{OAuthID: "abc"}, true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok.AccessToken, again.AccessToken)
	assert.Equal(t, 1, req.Calls())

	var rows []models.AccessToken
	require.NoError(t, database.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "abc-T1", rows[0].AccessToken)
	require.NotNil(t, rows[0].InstallID)
	assert.Equal(t, inst.ID, *rows[0].InstallID)
	assert.False(t, rows[0].HasExpired(time.Now()))
}

func TestManager_NoAutoRefreshMakesNoCall(t *testing.T) {
	req := &fakeRequester{expiresIn: 3599}
	m, _, inst := setupManager(t, req)

	tok, ok, err := m.GetOrRefresh(context.Background(), inst, false)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, tok)
	assert.Equal(t, 0, req.Calls())
}

func TestManager_CoalescesConcurrentRefreshes(t *testing.T) {
	req := &fakeRequester{expiresIn: 3599, release: make(chan struct{})}
	m, _, inst := setupManager(t, req)

	const callers = 10
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, _, err := m.GetOrRefresh(context.Background(), inst, true)
			errs[i] = err
			if tok != nil {
				tokens[i] = tok.AccessToken
			}
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(req.release)
	wg.Wait()

	assert.Equal(t, 1, req.Calls())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "abc-T1", tokens[i])
	}
}

func TestManager_DifferentKeysRefreshIndependently(t *testing.T) {
	req := &fakeRequester{expiresIn: 3599}
	m, database, inst := setupManager(t, req)
	other := &models.Install{AddonID: inst.AddonID, OAuthID: "def", OAuthSecret: "uvw", GroupID: 123, InstalledAt: time.Now()}
	require.NoError(t, database.Create(other).Error)

	a, _, err := m.GetOrRefresh(context.Background(), inst, true)
	require.NoError(t, err)
	b, _, err := m.GetOrRefresh(context.Background(), other, true)
	require.NoError(t, err)

	assert.Equal(t, 2, req.Calls())
	assert.NotEqual(t, a.AccessToken, b.AccessToken)
}

func TestManager_FailuresAreNotCached(t *testing.T) {
	req := &fakeRequester{expiresIn: 3599, err: &apperr.TokenExchangeError{StatusCode: 401, Body: `{"error":{"message":"nope"}}`}}
	m, database, inst := setupManager(t, req)
	ctx := context.Background()

	_, _, err := m.GetOrRefresh(ctx, inst, true)
	var exErr *apperr.TokenExchangeError
	require.True(t, errors.As(err, &exErr))

	_, ok, err := m.GetOrRefresh(ctx, inst, false)
	require.NoError(t, err)
	assert.False(t, ok)

	req.mu.Lock()
	req.err = nil
	req.mu.Unlock()

	tok, ok, err := m.GetOrRefresh(ctx, inst, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc-T2", tok.AccessToken)
	assert.Equal(t, 2, req.Calls())

	var count int64
	database.Model(&models.AccessToken{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestManager_NonPositiveExpiryIsNotCached(t *testing.T) {
	req := &fakeRequester{expiresIn: 0}
	m, _, inst := setupManager(t, req)
	ctx := context.Background()

	_, ok, err := m.GetOrRefresh(ctx, inst, true)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = m.GetOrRefresh(ctx, inst, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_DeletedInstallIsNotFound(t *testing.T) {
	req := &fakeRequester{expiresIn: 3599}
	m, database, inst := setupManager(t, req)
	ctx := context.Background()

	_, _, err := m.GetOrRefresh(ctx, inst, true)
	require.NoError(t, err)

	require.NoError(t, database.Delete(&models.Install{}, inst.ID).Error)

	for _, autoRefresh := range []bool{true, false} {
		_, _, err = m.GetOrRefresh(ctx, inst, autoRefresh)
		var nf *apperr.NotFoundError
		assert.True(t, errors.As(err, &nf), "autoRefresh=%v", autoRefresh)
	}
	assert.Equal(t, 1, req.Calls())
}

func TestManager_Forget(t *testing.T) {
	req := &fakeRequester{expiresIn: 3599}
	m, _, inst := setupManager(t, req)
	ctx := context.Background()

	_, _, err := m.GetOrRefresh(ctx, inst, true)
	require.NoError(t, err)
	require.NoError(t, m.Forget(ctx, inst.OAuthID))

	_, ok, err := m.GetOrRefresh(ctx, inst, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_RedisBackedCache(t *testing.T) {
	_, client := setupTestRedis(t)
	req := &fakeRequester{expiresIn: 3599}
	database := dbtest.New(t)
	addon := dbtest.SeedAddon(t, database, "status", "send_notification")
	inst := &models.Install{AddonID: addon.ID, OAuthID: "abc", OAuthSecret: "xyz", InstalledAt: time.Now()}
	require.NoError(t, database.Create(inst).Error)

	first := NewManager(database, NewRedisStore(client), req, "", logging.Discard())
	tok, _, err := first.GetOrRefresh(context.Background(), inst, true)
	require.NoError(t, err)

	// a second process sharing the same redis sees the token without an exchange
	second := NewManager(database, NewRedisStore(client), req, "", logging.Discard())
	shared, ok, err := second.GetOrRefresh(context.Background(), inst, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok.AccessToken, shared.AccessToken)
	assert.Equal(t, 1, req.Calls())
}
