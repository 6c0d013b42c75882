package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/healthmetrix/dynamic-consent/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-b string   persistence backend ("postgres" or "inmemory")
//	-s string   secrets backend ("env" or "aws")
//	-p string   env secret name prefix
//	-g string   AWS region
//	-n string   AWS Secrets Manager namespace
//	-t string   consent template directory
//	-i string   comma-separated JWT issuers
//	-w string   signer name for detached PDF signatures
//	-u int      shutdown timeout, seconds
//
// The function filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-b", "-s", "-p", "-g", "-n", "-t", "-i", "-w", "-u"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Backend, "b", config.Backend, "persistence backend")
	fs.StringVar(&config.SecretsBackend, "s", config.SecretsBackend, "secrets backend")
	fs.StringVar(&config.EnvSecretPrefix, "p", config.EnvSecretPrefix, "env secret name prefix")
	fs.StringVar(&config.AWSRegion, "g", config.AWSRegion, "AWS region")
	fs.StringVar(&config.AWSSecretsNamespace, "n", config.AWSSecretsNamespace, "AWS Secrets Manager namespace")
	fs.StringVar(&config.TemplateDir, "t", config.TemplateDir, "consent template directory")

	issuers := fs.String("i", strings.Join(config.JWTIssuers, ","), "comma-separated JWT issuers")
	fs.StringVar(&config.SignerName, "w", config.SignerName, "signer name for detached signatures")
	shutdownTimeout := fs.Int("u", int(config.ShutdownTimeout.Seconds()), "shutdown timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *issuers != "" {
		config.JWTIssuers = strings.Split(*issuers, ",")
	} else {
		config.JWTIssuers = nil
	}
	config.ShutdownTimeout = time.Duration(*shutdownTimeout) * time.Second
}
