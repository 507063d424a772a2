package config

import (
	"time"

	"github.com/m-mizutani/komainu/pkg/service/auth"
	"github.com/urfave/cli/v3"
)

// Auth contains configuration for API bearer token auth
type Auth struct {
	TokenSecret string
	TokenTTL    time.Duration
}

// Flags returns CLI flags for auth configuration
func (a *Auth) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "token-secret",
			Category:    "auth",
			Sources:     cli.EnvVars("KOMAINU_TOKEN_SECRET"),
			Usage:       "HMAC secret for API bearer tokens (auth disabled when empty)",
			Destination: &a.TokenSecret,
		},
		&cli.DurationFlag{
			Name:        "token-ttl",
			Category:    "auth",
			Sources:     cli.EnvVars("KOMAINU_TOKEN_TTL"),
			Usage:       "Lifetime of issued API tokens",
			Value:       24 * time.Hour,
			Destination: &a.TokenTTL,
		},
	}
}

// Enabled returns true if bearer token auth is configured
func (a *Auth) Enabled() bool {
	return a.TokenSecret != ""
}

// Configure builds the token service
func (a *Auth) Configure() (*auth.TokenService, error) {
	return auth.New([]byte(a.TokenSecret), auth.WithTTL(a.TokenTTL))
}
