package storage

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"
)

type closeParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Providers []StorageProvider `group:"storage_providers"`
}

func registerCloseHook(p closeParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			var result error
			for _, provider := range p.Providers {
				if err := provider.CloseAll(); err != nil {
					result = multierror.Append(result, err)
				}
			}
			return result
		},
	})
}

// Module provides the StorageConnectionResolver. Provider modules (local.Module, gcs.Module)
// contribute to the storage_providers group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewConnectionResolver,
		fx.As(new(StorageConnectionResolver)),
	)),
	fx.Invoke(registerCloseHook),
)
