package logger

import "go.uber.org/fx"

// Module installs FxLoggerAdapter as the Fx event logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
)
