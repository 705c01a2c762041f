package provision

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database"
	config "github.com/tigerroll/hrsync/pkg/exchange/core/config"
)

func registerProvisionHook(lc fx.Lifecycle, cfg *config.Config, conn database.DBConnection) {
	p := NewProvisioner(conn, cfg.HRSync.Infrastructure.Provision)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return p.Provision(ctx)
		},
	})
}

// Module provisions the HR tables on the default connection when the application starts.
var Module = fx.Options(
	fx.Invoke(registerProvisionHook),
)
