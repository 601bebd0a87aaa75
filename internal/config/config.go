// Package config loads runtime configuration from environment variables
// (prefix NOMINA_) with viper, optionally seeded from a .env file by main.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type Config struct {
	HTTPAddr    string
	DatabaseDSN string
	RedisAddr   string

	// CalcWorkers bounds the per-run employee evaluation fan-out.
	CalcWorkers int

	// Stamping.
	PACBaseURL         string
	PACAPIKey          string
	PACTimeout         time.Duration
	StampMaxAttempts   int
	StampBackoffBase   time.Duration
	CancelWindow       time.Duration
	VaultEncryptionKey string

	// Emitter identity for fiscal documents.
	EmitterRFC        string
	EmitterName       string
	EmployerRegistry  string
	FiscalRegime      string
	ExpeditionZipCode string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NOMINA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("database.dsn", "postgres://localhost:5432/nomina?sslmode=disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("calc.workers", 4)
	v.SetDefault("pac.base.url", "")
	v.SetDefault("pac.api.key", "")
	v.SetDefault("pac.timeout", "12s")
	v.SetDefault("stamp.max.attempts", 3)
	v.SetDefault("stamp.backoff.base", "1s")
	v.SetDefault("cancel.window", "72h")
	v.SetDefault("vault.encryption.key", "")
	v.SetDefault("emitter.rfc", "")
	v.SetDefault("emitter.name", "")
	v.SetDefault("emitter.registry", "")
	v.SetDefault("emitter.regime", "601")
	v.SetDefault("emitter.zipcode", "")

	return &Config{
		HTTPAddr:           v.GetString("http.addr"),
		DatabaseDSN:        v.GetString("database.dsn"),
		RedisAddr:          v.GetString("redis.addr"),
		CalcWorkers:        v.GetInt("calc.workers"),
		PACBaseURL:         v.GetString("pac.base.url"),
		PACAPIKey:          v.GetString("pac.api.key"),
		PACTimeout:         v.GetDuration("pac.timeout"),
		StampMaxAttempts:   v.GetInt("stamp.max.attempts"),
		StampBackoffBase:   v.GetDuration("stamp.backoff.base"),
		CancelWindow:       v.GetDuration("cancel.window"),
		VaultEncryptionKey: v.GetString("vault.encryption.key"),
		EmitterRFC:         v.GetString("emitter.rfc"),
		EmitterName:        v.GetString("emitter.name"),
		EmployerRegistry:   v.GetString("emitter.registry"),
		FiscalRegime:       v.GetString("emitter.regime"),
		ExpeditionZipCode:  v.GetString("emitter.zipcode"),
	}, nil
}

var Module = fx.Module("config",
	fx.Provide(Load),
)
