package queue

import "go.uber.org/fx"

// Module provides the redis-backed commission queue
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(
		NewRedisClient,
		NewRedisBroker,
		New,
	),
)
