package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	AuthProviderJWT      = "jwt"
	AuthProviderFirebase = "firebase"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT"` // json in production, text otherwise

	DBDriver               string `env:"DB_DRIVER" envDefault:"mysql"`
	DBUser                 string `env:"DB_USER"`
	DBPassword             string `env:"DB_PASSWORD"`
	DBHost                 string `env:"DB_HOST"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME"`
	DBPort                 string `env:"DB_PORT"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`
	DBPath                 string `env:"DB_PATH" envDefault:"unimarket.db"`
	AutoMigrate            bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	AuthProvider      string `env:"AUTH_PROVIDER" envDefault:"jwt"`
	JWTSecret         string `env:"JWT_SECRET"`
	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	// service account json; application default credentials when empty
	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"unimarket.events"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	UserCacheTTL  time.Duration `env:"USER_CACHE_TTL" envDefault:"5m"`

	MessageRateLimit float64 `env:"MESSAGE_RATE_LIMIT" envDefault:"5"`
	MessageRateBurst int     `env:"MESSAGE_RATE_BURST" envDefault:"10"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = "text"
		if c.IsProduction() {
			c.LogFormat = "json"
		}
	}

	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case DriverMySQL, DriverPostgres:
		var missing []string
		if c.DBUser == "" {
			missing = append(missing, "DB_USER")
		}
		if c.DBHost == "" && c.InstanceConnectionName == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.DBName == "" {
			missing = append(missing, "DB_NAME")
		}
		if len(missing) > 0 {
			return fmt.Errorf("config: %s required for driver %s", strings.Join(missing, ", "), c.DBDriver)
		}
		if c.DBPort == "" {
			if c.DBDriver == DriverPostgres {
				c.DBPort = "5432"
			} else {
				c.DBPort = "3306"
			}
		}
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("config: DB_PATH required for driver sqlite")
		}
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}

	c.AuthProvider = strings.ToLower(strings.TrimSpace(c.AuthProvider))
	switch c.AuthProvider {
	case AuthProviderJWT:
		if c.JWTSecret == "" {
			return errors.New("config: JWT_SECRET required for auth provider jwt")
		}
	case AuthProviderFirebase:
		if c.FirebaseProjectID == "" {
			return errors.New("config: FIREBASE_PROJECT_ID required for auth provider firebase")
		}
	default:
		return fmt.Errorf("config: unsupported AUTH_PROVIDER %q", c.AuthProvider)
	}

	if c.MessageRateLimit < 0 || c.MessageRateBurst < 0 {
		return errors.New("config: message rate limit must not be negative")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
