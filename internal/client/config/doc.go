// Package config loads runtime configuration for the librarykeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via flags: -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the API server
//	-f string   local session store (SQLite file)
//	-t string   request timeout ("10s", "1m")
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
//	{
//	  "server_url": "http://localhost:3000",
//	  "store_path": "librarykeeper.db",
//	  "request_timeout": "10s",
//	  "online_check_interval": "3s"
//	}
package config
