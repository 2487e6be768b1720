package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/librarykeeper/internal/flagx"
	"github.com/dmitrijs2005/librarykeeper/internal/timex"
)

// parseFlags overlays command-line flags onto config.
//
//	-a string   HTTP bind address (e.g. ":3000")
//	-d string   PostgreSQL DSN
//	-s string   access token secret
//	-x string   refresh token secret
//	-t string   access token lifetime (e.g. "15m")
//	-r string   refresh token lifetime (e.g. "7d")
//	-e string   environment name
//
// Only these flags are considered; os.Args is filtered with
// flagx.FilterArgs so -c and -env-file stay with their own layers.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-x", "-t", "-r", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessSecret, "s", config.AccessSecret, "access token secret")
	fs.StringVar(&config.RefreshSecret, "x", config.RefreshSecret, "refresh token secret")
	fs.StringVar(&config.Env, "e", config.Env, "environment (development, production, test)")
	accessTTL := fs.String("t", "", "access token lifetime, e.g. 15m")
	refreshTTL := fs.String("r", "", "refresh token lifetime, e.g. 7d")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *accessTTL != "" {
		d, err := timex.ParseExpiry(*accessTTL)
		if err != nil {
			return fmt.Errorf("-t: %w", err)
		}
		config.AccessTokenTTL = d
	}
	if *refreshTTL != "" {
		d, err := timex.ParseExpiry(*refreshTTL)
		if err != nil {
			return fmt.Errorf("-r: %w", err)
		}
		config.RefreshTokenTTL = d
	}

	return nil
}
