package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/userauth/internal/flagx"
	"github.com/dmitrijs2005/userauth/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerURL      *string         `json:"server_url"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with the file named by -c / -config. It panics on
// read or unmarshal errors.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != nil {
		cfg.ServerURL = *jc.ServerURL
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
}
