package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/userauth/internal/flagx"
)

var serverFlags = []string{"-a", "-G", "-d", "-s", "-S", "-t", "-r", "-u", "-p", "-b", "-g", "-e", "-q", "-l"}

// parseFlags overlays values from command-line flags.
//
//	-a string   HTTP bind address (":8080")
//	-G string   gRPC bind address (":50051")
//	-d string   PostgreSQL DSN
//	-s string   access token secret
//	-S string   refresh token secret
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-q string   AMQP URL for domain events
//	-l string   log level
//
// Unknown arguments are filtered out with flagx.FilterArgs first.
func parseFlags(config *Config, args []string) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "G", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "S", config.RefreshTokenSecret, "refresh token secret")

	accessMinutes := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshMinutes := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.AMQPURL, "q", config.AMQPURL, "AMQP URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		panic(err)
	}

	// Durations are only replaced when given explicitly, so sub-minute
	// values from earlier sources survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessMinutes) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshMinutes) * time.Minute
		}
	})
}
