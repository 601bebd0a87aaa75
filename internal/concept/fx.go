package concept

import (
	"github.com/nominalabs/nomina/internal/concept/service"
	"go.uber.org/fx"
)

var Module = fx.Module("concept.service",
	fx.Provide(service.NewService),
)
