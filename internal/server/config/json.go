package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/librarykeeper/internal/flagx"
	"github.com/dmitrijs2005/librarykeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the optional -c/-config file. Only
// fields present in the file override the running Config.
type JsonConfig struct {
	Env                 string         `json:"env"`
	HTTPAddr            string         `json:"http_addr"`
	DatabaseDSN         string         `json:"database_dsn"`
	DBMinConns          int            `json:"db_min_conns"`
	DBMaxConns          int            `json:"db_max_conns"`
	AccessSecret        string         `json:"access_secret"`
	RefreshSecret       string         `json:"refresh_secret"`
	AccessTokenTTL      timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL     timex.Duration `json:"refresh_token_ttl"`
	BcryptCost          int            `json:"bcrypt_cost"`
	CORSOrigin          string         `json:"cors_origin"`
	RateLimitWindow     timex.Duration `json:"rate_limit_window"`
	RateLimitMax        int            `json:"rate_limit_max"`
	AuthRateLimitWindow timex.Duration `json:"auth_rate_limit_window"`
	AuthRateLimitMax    int            `json:"auth_rate_limit_max"`
}

func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setString(&config.Env, c.Env)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setInt(&config.DBMinConns, c.DBMinConns)
	setInt(&config.DBMaxConns, c.DBMaxConns)
	setString(&config.AccessSecret, c.AccessSecret)
	setString(&config.RefreshSecret, c.RefreshSecret)
	setDuration(&config.AccessTokenTTL, c.AccessTokenTTL)
	setDuration(&config.RefreshTokenTTL, c.RefreshTokenTTL)
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.CORSOrigin, c.CORSOrigin)
	setDuration(&config.RateLimitWindow, c.RateLimitWindow)
	setInt(&config.RateLimitMax, c.RateLimitMax)
	setDuration(&config.AuthRateLimitWindow, c.AuthRateLimitWindow)
	setInt(&config.AuthRateLimitMax, c.AuthRateLimitMax)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
