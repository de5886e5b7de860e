//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/xingh/glue/config"
)

// initializeApp builds the application from a loaded configuration.
func initializeApp(ctx context.Context, cfg *config.Config) (*app, func(), error) {
	wire.Build(
		config.ProviderSet,
		wire.Struct(new(app), "*"),
	)
	return nil, nil, nil
}
