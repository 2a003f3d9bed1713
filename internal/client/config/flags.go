package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/choirsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   registry server URL, normally the edge proxy
//	-d string   path of the local SQLite database
//	-i int      online check interval in seconds
//	-o string   directory receiving exported reports
//	-l string   log level (debug, info, warn, error)
//
// Arguments for flags defined elsewhere, such as -c, are skipped.
func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "registry server URL")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "local database path")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DownloadDir, "o", cfg.DownloadDir, "directory for exported reports")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := flagx.ParseOwned(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
