package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lockerd/lockerd/credstore"
	lockerdhttp "github.com/lockerd/lockerd/http"
	"github.com/lockerd/lockerd/s3store"
)

// Config is the root configuration struct for lockerd.
type Config struct {
	Env       string                 `mapstructure:"env"`
	Server    ServerConfig           `mapstructure:"server"`
	Store     credstore.Config       `mapstructure:"store"`
	Storage   s3store.Config         `mapstructure:"storage"`
	Session   SessionConfig          `mapstructure:"session"`
	Bootstrap BootstrapConfig        `mapstructure:"bootstrap"`
	CORS      lockerdhttp.CORSConfig `mapstructure:"cors"`
	Log       LogConfig              `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          int   `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"min=0"`
}

// SessionConfig holds session gate configuration.
type SessionConfig struct {
	// Secret signs session cookie values; it must be set per deployment.
	Secret     string `mapstructure:"secret" validate:"required"`
	TTLMinutes int    `mapstructure:"ttl_minutes" validate:"min=1"`
	Backend    string `mapstructure:"backend" validate:"required,oneof=memory redis"`
	RedisURL   string `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	CookieName string `mapstructure:"cookie_name"`
}

// BootstrapConfig holds the default account seeded into an empty
// credential store on first access.
type BootstrapConfig struct {
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":       "server.port",
	"store-type": "store.type",
	"store-path": "store.path",
	"store-dsn":  "store.dsn",
	"bucket":     "storage.bucket",
	"endpoint":   "storage.endpoint",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_size", 0) // 0 means no limit

	v.SetDefault("store.type", "file")
	v.SetDefault("store.path", "credentials.json")
	v.SetDefault("store.dsn", "")

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "lockerd")
	v.SetDefault("storage.use_path_style", false)

	// Keys without a usable default still need to be registered, or
	// AutomaticEnv never surfaces them during Unmarshal.
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")

	v.SetDefault("session.secret", "")
	v.SetDefault("session.redis_url", "")
	v.SetDefault("session.ttl_minutes", 1440) // 24h absolute lifetime
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.cookie_name", "lockerd_session")

	v.SetDefault("bootstrap.username", "admin")
	v.SetDefault("bootstrap.password", "admin")

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type"})

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("LOCKERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
