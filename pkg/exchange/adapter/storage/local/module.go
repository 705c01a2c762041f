package local

import (
	"go.uber.org/fx"

	storageAdapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/storage"
)

// Module contributes the local provider to the storage_providers group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLocalProvider,
		fx.ResultTags(`group:"`+storageAdapter.StorageProviderGroup+`"`),
	)),
)
