package vault

import (
	"github.com/nominalabs/nomina/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("security.vault",
	fx.Provide(func(cfg *config.Config) *Vault {
		return New(cfg.VaultEncryptionKey)
	}),
)
