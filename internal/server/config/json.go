package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/healthmetrix/dynamic-consent/internal/flagx"
	"github.com/healthmetrix/dynamic-consent/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "10s" and integer nanoseconds. After unmarshalling,
// non-empty fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr        string         `json:"endpoint_addr"`
	DatabaseDSN         string         `json:"database_dsn"`
	Backend             string         `json:"backend"`
	SecretsBackend      string         `json:"secrets_backend"`
	EnvSecretPrefix     string         `json:"env_secret_prefix"`
	AWSRegion           string         `json:"aws_region"`
	AWSSecretsNamespace string         `json:"aws_secrets_namespace"`
	TemplateDir         string         `json:"template_dir"`
	JWTIssuers          []string       `json:"jwt_issuers"`
	SignerName          string         `json:"signer_name"`
	ShutdownTimeout     timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. Unreadable or invalid
// files panic: a half-applied config is worse than a crash at startup.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.Backend != "" {
		config.Backend = c.Backend
	}
	if c.SecretsBackend != "" {
		config.SecretsBackend = c.SecretsBackend
	}
	if c.EnvSecretPrefix != "" {
		config.EnvSecretPrefix = c.EnvSecretPrefix
	}
	if c.AWSRegion != "" {
		config.AWSRegion = c.AWSRegion
	}
	if c.AWSSecretsNamespace != "" {
		config.AWSSecretsNamespace = c.AWSSecretsNamespace
	}
	if c.TemplateDir != "" {
		config.TemplateDir = c.TemplateDir
	}
	if len(c.JWTIssuers) > 0 {
		config.JWTIssuers = c.JWTIssuers
	}
	if c.SignerName != "" {
		config.SignerName = c.SignerName
	}
	if c.ShutdownTimeout.Duration != 0 {
		config.ShutdownTimeout = time.Duration(c.ShutdownTimeout.Duration)
	}
}
