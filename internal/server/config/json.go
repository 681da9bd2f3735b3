package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/userauth/internal/flagx"
	"github.com/dmitrijs2005/userauth/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Only keys present in
// the file are applied; pointer fields tell absent keys from zero values.
type JsonConfig struct {
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	BasePath                     *string         `json:"base_path"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	AccessTokenSecret            *string         `json:"access_token_secret"`
	RefreshTokenSecret           *string         `json:"refresh_token_secret"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   *int            `json:"bcrypt_cost"`
	CookieSecure                 *bool           `json:"cookie_secure"`
	UploadTempDir                *string         `json:"upload_temp_dir"`
	BodyLimit                    *string         `json:"body_limit"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	S3PublicBaseURL              *string         `json:"s3_public_base_url"`
	AMQPURL                      *string         `json:"amqp_url"`
	LogLevel                     *string         `json:"log_level"`
}

// parseJson loads the file named by -c / -config in args, if any, and
// copies the keys it contains into config. An unreadable or invalid file
// panics: the process must not start with a half-applied configuration.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.BasePath, c.BasePath)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	setString(&config.UploadTempDir, c.UploadTempDir)
	setString(&config.BodyLimit, c.BodyLimit)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.AMQPURL, c.AMQPURL)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
