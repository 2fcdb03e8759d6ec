package glance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pysugar/hipchat-connect/internal/db/models"
)

type fakeHistory struct {
	row *models.GlanceUpdate
	err error
}

func (f fakeHistory) LatestUpdate(context.Context, uint) (*models.GlanceUpdate, error) {
	return f.row, f.err
}

func TestKeyedDataSource(t *testing.T) {
	ks := NewKeyedDataSource()
	ks.Register("build", DataSourceFunc(func(ctx context.Context, g *models.Glance) (*Update, error) {
		return NewUpdate("green", WithLozenge(MustLozenge(LozengeSuccess, "OK")))
	}))
	ctx := context.Background()

	u, err := ks.FetchUpdate(ctx, &models.Glance{Key: "build"})
	require.NoError(t, err)
	assert.Equal(t, "green", u.Label)

	u, err = ks.FetchUpdate(ctx, &models.Glance{Key: "deploys"})
	require.NoError(t, err)
	assert.Equal(t, "Initialising", u.Label)
}

func TestLastPublished(t *testing.T) {
	ctx := context.Background()
	g := &models.Glance{ID: 3, Key: "build"}

	t.Run("latest row", func(t *testing.T) {
		src := LastPublished{
			History:  fakeHistory{row: &models.GlanceUpdate{GlanceID: 3, LabelValue: "2 failing", LozengeType: "error", LozengeValue: "FAIL"}},
			Fallback: DefaultDataSource{},
		}
		u, err := src.FetchUpdate(ctx, g)
		require.NoError(t, err)
		assert.Equal(t, "2 failing", u.Label)
		assert.Equal(t, LozengeError, u.Lozenge.Type())
	})

	t.Run("no history", func(t *testing.T) {
		src := LastPublished{History: fakeHistory{}, Fallback: DefaultDataSource{}}
		u, err := src.FetchUpdate(ctx, g)
		require.NoError(t, err)
		assert.Equal(t, Initialising().Content(), u.Content())
	})

	t.Run("history error", func(t *testing.T) {
		boom := errors.New("db down")
		src := LastPublished{History: fakeHistory{err: boom}, Fallback: DefaultDataSource{}}
		_, err := src.FetchUpdate(ctx, g)
		assert.ErrorIs(t, err, boom)
	})
}

func TestInstallContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, InstallFromContext(ctx))

	inst := &models.Install{OAuthID: "abc"}
	assert.Same(t, inst, InstallFromContext(WithInstall(ctx, inst)))
}
