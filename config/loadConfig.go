package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"vidos-entegrasyon/core"

	"github.com/spf13/viper"
)

const EnvPrefix = "VIDOS"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "vidos-entegrasyon")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.upload_dir", "./storage/uploads")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("database.path", "./storage/vidos.db")

	v.SetDefault("feed.user_agent", "SOPYO-Integration-Client/1.0")
	v.SetDefault("feed.timeout", 120*time.Second)
	v.SetDefault("feed.max_cached_sources", 20)

	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.max_jobs", 200)
	v.SetDefault("jobs.chunk_size", 25)
	v.SetDefault("jobs.max_retries", 5)
	v.SetDefault("jobs.retry_base_delay", 10*time.Second)

	v.SetDefault("pricing.guard_max_ratio", 2.0)
	v.SetDefault("pricing.guard_min_ratio", 0.5)

	v.SetDefault("bugz.base_url", "https://bug-z.com/api/v2")
	v.SetDefault("bugz.timeout", 30*time.Second)
}

// LoadConfig, JSON konfigürasyonu okur. Dosya yoksa varsayılanlar ve VIDOS_* ortam değişkenleri kullanılır.
func LoadConfig(path string) (core.Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			var pathErr *fs.PathError
			if !errors.As(err, &pathErr) || !errors.Is(pathErr, os.ErrNotExist) {
				return core.Config{}, fmt.Errorf("config okunamadı: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := core.Config{
		App: core.AppConfig{
			Name:      v.GetString("app.name"),
			Env:       v.GetString("app.env"),
			UploadDir: v.GetString("app.upload_dir"),
		},
		Log: core.LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: core.DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Feed: core.FeedConfig{
			UserAgent:        v.GetString("feed.user_agent"),
			Timeout:          v.GetDuration("feed.timeout"),
			MaxCachedSources: v.GetInt("feed.max_cached_sources"),
		},
		Jobs: core.JobsConfig{
			Workers:        v.GetInt("jobs.workers"),
			MaxJobs:        v.GetInt("jobs.max_jobs"),
			ChunkSize:      v.GetInt("jobs.chunk_size"),
			MaxRetries:     v.GetInt("jobs.max_retries"),
			RetryBaseDelay: v.GetDuration("jobs.retry_base_delay"),
		},
		Pricing: core.PricingConfig{
			GuardMaxRatio: v.GetFloat64("pricing.guard_max_ratio"),
			GuardMinRatio: v.GetFloat64("pricing.guard_min_ratio"),
		},
		BugZ: core.BugZConfig{
			BaseURL: v.GetString("bugz.base_url"),
			Timeout: v.GetDuration("bugz.timeout"),
		},
	}
	return cfg, nil
}
