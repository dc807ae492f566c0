/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	apiTimeout     time.Duration
	apiURL         string
	bind           string
	identityCookie string
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	signinURL      string
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool

	log *logrus.Logger
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if u, err := url.Parse(c.apiURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid --api-url (must be an absolute http or https url): %q", c.apiURL)
	}
	if c.apiTimeout < 0 {
		return fmt.Errorf("invalid --api-timeout (must not be negative): %s", c.apiTimeout)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid --session-timeout (must not be negative): %s", c.sessionTimeout)
	}
	if c.signinURL == "" {
		return errors.New("--signin-url must not be empty")
	}
	if c.identityCookie == "" {
		return errors.New("--identity-cookie must not be empty")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// logger builds the process logger; --verbose turns on debug output.
func (c *Config) logger() *logrus.Logger {
	level := logrus.InfoLevel
	if c.verbose {
		level = logrus.DebugLevel
	}

	return &logrus.Logger{
		Out: os.Stderr,
		Formatter: &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: logDate,
		},
		Hooks: make(logrus.LevelHooks),
		Level: level,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ICEBREAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "icebreaker",
		Short:         "Player page for the icebreaker matching game: find a different person for every question.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			cfg.log = cfg.logger()
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.DurationVar(&cfg.apiTimeout, "api-timeout", 10*time.Second, "time limit for each game backend request, 0 to disable (env: ICEBREAKER_API_TIMEOUT)")
	fs.StringVar(&cfg.apiURL, "api-url", "http://localhost:3000", "base url of the game backend (env: ICEBREAKER_API_URL)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: ICEBREAKER_BIND)")
	fs.StringVar(&cfg.identityCookie, "identity-cookie", "user", "cookie holding the signed-in player (env: ICEBREAKER_IDENTITY_COOKIE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: ICEBREAKER_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: ICEBREAKER_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: ICEBREAKER_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle play sessions are dropped, 0 to keep them (env: ICEBREAKER_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.signinURL, "signin-url", "/signin", "where players without an identity are sent (env: ICEBREAKER_SIGNIN_URL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: ICEBREAKER_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: ICEBREAKER_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: ICEBREAKER_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: ICEBREAKER_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("icebreaker v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
