package gorm

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database"
	config "github.com/tigerroll/hrsync/pkg/exchange/core/config"
	"github.com/tigerroll/hrsync/pkg/exchange/core/tx"
)

// NewDefaultConnection resolves the connection named by hrsync.infrastructure.db_ref.
func NewDefaultConnection(cfg *config.Config, resolver database.DBConnectionResolver) (database.DBConnection, error) {
	return resolver.ResolveDBConnection(context.Background(), cfg.HRSync.Infrastructure.DBRef)
}

// NewDefaultTransactionManager returns a transaction manager on the db_ref connection.
func NewDefaultTransactionManager(cfg *config.Config, resolver database.DBConnectionResolver) tx.TransactionManager {
	return NewGormTransactionManager(resolver, cfg.HRSync.Infrastructure.DBRef)
}

type closeParams struct {
	fx.In
	Lifecycle   fx.Lifecycle
	DBProviders []database.DBProvider `group:"db_providers"`
}

// registerCloseHook closes every provider's connections on shutdown.
func registerCloseHook(p closeParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			var result error
			for _, provider := range p.DBProviders {
				if err := provider.CloseAll(); err != nil {
					result = multierror.Append(result, err)
				}
			}
			return result
		},
	})
}

// Module provides the connection resolver, the default connection and its transaction manager.
// Dialect modules (sqlite.Module, mysql.Module, postgres.Module) supply the providers.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewGormDBConnectionResolver,
		fx.As(new(database.DBConnectionResolver)),
	)),
	fx.Provide(NewDefaultConnection),
	fx.Provide(NewDefaultTransactionManager),
	fx.Invoke(registerCloseHook),
)
