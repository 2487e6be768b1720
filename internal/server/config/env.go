package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/librarykeeper/internal/flagx"
	"github.com/dmitrijs2005/librarykeeper/internal/timex"
)

// loadDotEnv loads KEY=VALUE pairs from the -env-file path (".env" by
// default) into the process environment. Variables that are already set
// win, and a missing file is not an error.
func loadDotEnv(args []string) error {
	err := godotenv.Load(flagx.EnvFile(args))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// parseEnv overlays environment variables onto config.
//
//	APP_ENV                  development | production | test
//	PORT                     listen port, bound on all interfaces
//	DATABASE_URL             full DSN; otherwise DB_HOST, DB_PORT, DB_NAME,
//	                         DB_USER and DB_PASSWORD compose one
//	DB_POOL_MIN, DB_POOL_MAX connection pool bounds
//	JWT_ACCESS_SECRET, JWT_REFRESH_SECRET
//	JWT_ACCESS_EXPIRES_IN, JWT_REFRESH_EXPIRES_IN   compact specs, e.g. 15m, 7d
//	BCRYPT_COST
//	CORS_ORIGIN
//	RATE_LIMIT_WINDOW_MS, RATE_LIMIT_MAX
//	AUTH_RATE_LIMIT_WINDOW_MS, AUTH_RATE_LIMIT_MAX
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	expiry := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := timex.ParseExpiry(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	millis := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = time.Duration(n) * time.Millisecond
		}
	}

	str("APP_ENV", &config.Env)
	if port, ok := lookup("PORT"); ok && port != "" {
		config.HTTPAddr = ":" + port
	}

	str("DATABASE_URL", &config.DatabaseDSN)
	if _, ok := lookup("DATABASE_URL"); !ok {
		if dsn, ok := composeDSN(lookup); ok {
			config.DatabaseDSN = dsn
		}
	}
	num("DB_POOL_MIN", &config.DBMinConns)
	num("DB_POOL_MAX", &config.DBMaxConns)

	str("JWT_ACCESS_SECRET", &config.AccessSecret)
	str("JWT_REFRESH_SECRET", &config.RefreshSecret)
	expiry("JWT_ACCESS_EXPIRES_IN", &config.AccessTokenTTL)
	expiry("JWT_REFRESH_EXPIRES_IN", &config.RefreshTokenTTL)
	num("BCRYPT_COST", &config.BcryptCost)

	str("CORS_ORIGIN", &config.CORSOrigin)
	millis("RATE_LIMIT_WINDOW_MS", &config.RateLimitWindow)
	num("RATE_LIMIT_MAX", &config.RateLimitMax)
	millis("AUTH_RATE_LIMIT_WINDOW_MS", &config.AuthRateLimitWindow)
	num("AUTH_RATE_LIMIT_MAX", &config.AuthRateLimitMax)

	return errors.Join(errs...)
}

// composeDSN builds a postgres URL from the discrete DB_* variables. It
// reports false when none of them is set.
func composeDSN(lookup func(string) (string, bool)) (string, bool) {
	get := func(key, def string) (string, bool) {
		if v, ok := lookup(key); ok && v != "" {
			return v, true
		}
		return def, false
	}

	host, h := get("DB_HOST", "localhost")
	port, p := get("DB_PORT", "5432")
	name, n := get("DB_NAME", "library_db")
	user, u := get("DB_USER", "postgres")
	pass, pw := get("DB_PASSWORD", "postgres")
	if !h && !p && !n && !u && !pw {
		return "", false
	}

	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + name,
		RawQuery: "sslmode=disable",
	}
	return dsn.String(), true
}
