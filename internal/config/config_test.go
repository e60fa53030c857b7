package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsForSQLite(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "unimarket.db", cfg.DBPath)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, AuthProviderJWT, cfg.AuthProvider)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLogFormatFollowsAppEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "json", cfg.LogFormat)

	t.Setenv("LOG_FORMAT", "Text")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr string
		check   func(t *testing.T, c Config)
	}{
		{
			name:    "mysql needs credentials",
			cfg:     Config{DBDriver: DriverMySQL, AuthProvider: AuthProviderJWT, JWTSecret: "x"},
			wantErr: "DB_USER, DB_HOST, DB_NAME",
		},
		{
			name: "mysql default port",
			cfg:  Config{DBDriver: DriverMySQL, DBUser: "u", DBHost: "db", DBName: "market", AuthProvider: AuthProviderJWT, JWTSecret: "x"},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, "3306", c.DBPort)
			},
		},
		{
			name: "postgres via cloud sql",
			cfg:  Config{DBDriver: "Postgres", DBUser: "u", InstanceConnectionName: "p:r:i", DBName: "market", AuthProvider: AuthProviderJWT, JWTSecret: "x"},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, DriverPostgres, c.DBDriver)
				assert.Equal(t, "5432", c.DBPort)
			},
		},
		{
			name:    "unknown driver",
			cfg:     Config{DBDriver: "oracle", AuthProvider: AuthProviderJWT, JWTSecret: "x"},
			wantErr: "unsupported DB_DRIVER",
		},
		{
			name:    "jwt needs secret",
			cfg:     Config{DBDriver: DriverSQLite, DBPath: "x.db", AuthProvider: AuthProviderJWT},
			wantErr: "JWT_SECRET",
		},
		{
			name:    "firebase needs project",
			cfg:     Config{DBDriver: DriverSQLite, DBPath: "x.db", AuthProvider: AuthProviderFirebase},
			wantErr: "FIREBASE_PROJECT_ID",
		},
		{
			name:    "negative rate",
			cfg:     Config{DBDriver: DriverSQLite, DBPath: "x.db", AuthProvider: AuthProviderJWT, JWTSecret: "x", MessageRateLimit: -1},
			wantErr: "rate limit",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.cfg
			err := c.Validate()
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			if tc.check != nil {
				tc.check(t, c)
			}
		})
	}
}
