package stamping

import (
	"github.com/nominalabs/nomina/internal/config"
	"github.com/nominalabs/nomina/internal/security/vault"
	"github.com/nominalabs/nomina/internal/stamping/domain"
	"github.com/nominalabs/nomina/internal/stamping/pac"
	"github.com/nominalabs/nomina/internal/stamping/service"
	"go.uber.org/fx"
)

var Module = fx.Module("stamping.service",
	fx.Provide(func(cfg *config.Config, v *vault.Vault) (domain.Client, error) {
		return pac.NewHTTPClient(cfg, v)
	}),
	fx.Provide(service.NewService),
)
