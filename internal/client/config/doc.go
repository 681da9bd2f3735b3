// Package config loads runtime configuration for the userauth CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the user API
//	-t int      request timeout (seconds)
//
// # JSON schema
//
// Durations accept strings like "5s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080/api/v1/users",
//	  "request_timeout": "10s"
//	}
package config
