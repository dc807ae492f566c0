/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "cert without key", modify: func(c *Config) { c.tlsCert = "cert.pem" }, err: "--tls-key"},
		{name: "port zero", modify: func(c *Config) { c.port = 0 }, err: "invalid port"},
		{name: "port too high", modify: func(c *Config) { c.port = 70000 }, err: "invalid port"},
		{name: "relative api url", modify: func(c *Config) { c.apiURL = "/api" }, err: "--api-url"},
		{name: "ftp api url", modify: func(c *Config) { c.apiURL = "ftp://example.com" }, err: "--api-url"},
		{name: "negative api timeout", modify: func(c *Config) { c.apiTimeout = -time.Second }, err: "--api-timeout"},
		{name: "negative session timeout", modify: func(c *Config) { c.sessionTimeout = -time.Second }, err: "--session-timeout"},
		{name: "no sign-in url", modify: func(c *Config) { c.signinURL = "" }, err: "--signin-url"},
		{name: "no identity cookie", modify: func(c *Config) { c.identityCookie = "" }, err: "--identity-cookie"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "http://localhost:3000")
			tt.modify(cfg)

			err := cfg.validate()
			if tt.err == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := testConfig(t, "http://localhost:3000")
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestFlagsFromEnvironment(t *testing.T) {
	t.Setenv("ICEBREAKER_API_URL", "https://game.example.com")
	t.Setenv("ICEBREAKER_PORT", "9090")
	t.Setenv("ICEBREAKER_SESSION_TIMEOUT", "5m")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, "https://game.example.com", cfg.apiURL)
	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, 5*time.Minute, cfg.sessionTimeout)
	assert.Equal(t, "user", cfg.identityCookie)
	assert.Equal(t, 10*time.Second, cfg.apiTimeout)
}
