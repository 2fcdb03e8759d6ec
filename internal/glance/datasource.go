package glance

import (
	"context"

	"github.com/pysugar/hipchat-connect/internal/db/models"
)

// DataSource supplies the current content for a glance data request.
type DataSource interface {
	FetchUpdate(ctx context.Context, g *models.Glance) (*Update, error)
}

// DataSourceFunc adapts a function to DataSource.
type DataSourceFunc func(ctx context.Context, g *models.Glance) (*Update, error)

func (f DataSourceFunc) FetchUpdate(ctx context.Context, g *models.Glance) (*Update, error) {
	return f(ctx, g)
}

// DefaultDataSource always answers with the Initialising placeholder.
type DefaultDataSource struct{}

func (DefaultDataSource) FetchUpdate(context.Context, *models.Glance) (*Update, error) {
	return Initialising(), nil
}

// KeyedDataSource dispatches on glance key and falls back to Default.
// Sources are registered at start-up; it is not safe to Register while serving.
type KeyedDataSource struct {
	sources  map[string]DataSource
	Fallback DataSource
}

func NewKeyedDataSource() *KeyedDataSource {
	return &KeyedDataSource{sources: make(map[string]DataSource), Fallback: DefaultDataSource{}}
}

func (k *KeyedDataSource) Register(glanceKey string, ds DataSource) {
	k.sources[glanceKey] = ds
}

func (k *KeyedDataSource) FetchUpdate(ctx context.Context, g *models.Glance) (*Update, error) {
	if ds, ok := k.sources[g.Key]; ok {
		return ds.FetchUpdate(ctx, g)
	}
	return k.Fallback.FetchUpdate(ctx, g)
}

// LastPublished serves the most recent stored update for a glance, if any.
type LastPublished struct {
	History  HistoryReader
	Fallback DataSource
}

// HistoryReader returns the newest stored update, or nil when there is none.
type HistoryReader interface {
	LatestUpdate(ctx context.Context, glanceID uint) (*models.GlanceUpdate, error)
}

func (l LastPublished) FetchUpdate(ctx context.Context, g *models.Glance) (*Update, error) {
	row, err := l.History.LatestUpdate(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return l.Fallback.FetchUpdate(ctx, g)
	}
	return FromRecord(row)
}

type installKey struct{}

// WithInstall stores the verified install of a signed request on ctx.
func WithInstall(ctx context.Context, inst *models.Install) context.Context {
	return context.WithValue(ctx, installKey{}, inst)
}

// InstallFromContext returns the install set by WithInstall, or nil.
func InstallFromContext(ctx context.Context) *models.Install {
	inst, _ := ctx.Value(installKey{}).(*models.Install)
	return inst
}
