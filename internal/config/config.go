// Package config loads application settings from the environment.
//
// WHY VIPER?
// Viper gives us defaults + environment overrides in a couple of lines and
// keeps main.go free of os.Getenv plumbing. AutomaticEnv() makes every key
// below overridable: SECRET_KEY=... PORT=9090 ./server
//
// Secrets (SECRET_KEY) are held in the config struct but must never be
// written to a response — the /config endpoint exposes only the non-secret
// subset (see Public()).
package config

import (
	"github.com/spf13/viper"
)

// Application identity. These are build-time constants, not configuration —
// changing them is a code change, so they don't come from the environment.
const (
	AppName    = "Marketplace API"
	AppVersion = "1.0.0"
)

// Config holds all runtime settings for the server.
type Config struct {
	Port                     int    // HTTP listen port
	SecretKey                string // HMAC secret for signing JWTs
	AccessTokenExpireMinutes int    // lifetime of tokens issued by /auth/login
	Environment              string // "development" or "production"
	Debug                    bool
	DBPath                   string // empty = in-memory store; ":memory:" or a file path = SQLite
}

// Load reads configuration from environment variables, falling back to
// development defaults. It never fails: every key has a usable default, and
// values are validated where they're consumed (e.g. the token service rejects
// short secrets).
func Load() *Config {
	v := viper.New()

	v.SetDefault("PORT", 8080)
	v.SetDefault("SECRET_KEY", "your-secret-key-change-in-production")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("DEBUG", false)
	v.SetDefault("DB_PATH", "")
	v.AutomaticEnv() // environment variables override the defaults above

	return &Config{
		Port:                     v.GetInt("PORT"),
		SecretKey:                v.GetString("SECRET_KEY"),
		AccessTokenExpireMinutes: v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES"),
		Environment:              v.GetString("ENVIRONMENT"),
		Debug:                    v.GetBool("DEBUG"),
		DBPath:                   v.GetString("DB_PATH"),
	}
}

// Public returns the non-secret settings exposed by GET /config.
// The signing secret is deliberately absent.
func (c *Config) Public() map[string]any {
	return map[string]any{
		"app_name":                    AppName,
		"app_version":                 AppVersion,
		"environment":                 c.Environment,
		"debug":                       c.Debug,
		"access_token_expire_minutes": c.AccessTokenExpireMinutes,
	}
}
