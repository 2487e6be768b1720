package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/librarykeeper/internal/flagx"
	"github.com/dmitrijs2005/librarykeeper/internal/timex"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the API server
//	-f string   path of the local session store
//	-t string   request timeout, e.g. "10s"
//	-i int      online check interval in seconds
func parseFlags(cfg *Config, args []string) error {
	// Filter args to include only those handled here.
	args = flagx.FilterArgs(args, []string{"-a", "-f", "-t", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the API server")
	fs.StringVar(&cfg.StorePath, "f", cfg.StorePath, "local session store")
	timeout := fs.String("t", "", "request timeout")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *timeout != "" {
		d, err := timex.ParseExpiry(*timeout)
		if err != nil {
			return fmt.Errorf("-t: %w", err)
		}
		cfg.RequestTimeout = d
	}
	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	return nil
}
