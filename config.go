/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	apiPort          int
	audienceInterval time.Duration
	banners          string
	bind             string
	callbackPort     int
	chatPort         int
	dumps            string
	prefix           string
	profile          bool
	secrets          string
	srsAPI           string
	staticDir        string
	sweepInterval    time.Duration
	tlsCert          string
	tlsKey           string
	verbose          bool
	version          bool
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid %s (must be between 1-65535 inclusive): %d", name, port)
	}
	return nil
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}

	for name, port := range map[string]int{
		"--api-port":      c.apiPort,
		"--chat-port":     c.chatPort,
		"--callback-port": c.callbackPort,
	} {
		if err := validPort(name, port); err != nil {
			return err
		}
	}

	if c.apiPort == c.chatPort || c.apiPort == c.callbackPort || c.chatPort == c.callbackPort {
		return errors.New("--api-port, --chat-port and --callback-port must differ")
	}

	if c.sweepInterval <= 0 {
		return fmt.Errorf("--sweep-interval must be positive: %s", c.sweepInterval)
	}
	if c.audienceInterval <= 0 {
		return fmt.Errorf("--audience-interval must be positive: %s", c.audienceInterval)
	}

	if c.banners == "" {
		return errors.New("--banners is required")
	}
	if c.secrets == "" {
		return errors.New("--secrets is required")
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LIVEQUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "livequiz",
		Short:         "Quiz-gated access control and chat for a single live stream.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.IntVar(&cfg.apiPort, "api-port", 3484, "port for the viewer api (env: LIVEQUIZ_API_PORT)")
	fs.DurationVar(&cfg.audienceInterval, "audience-interval", 5*time.Second, "how often to poll the media server for viewers (env: LIVEQUIZ_AUDIENCE_INTERVAL)")
	fs.StringVar(&cfg.banners, "banners", "banners.json", "path to the quiz corpus (env: LIVEQUIZ_BANNERS)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: LIVEQUIZ_BIND)")
	fs.IntVar(&cfg.callbackPort, "callback-port", 8848, "port for media server callbacks (env: LIVEQUIZ_CALLBACK_PORT)")
	fs.IntVar(&cfg.chatPort, "chat-port", 3614, "port for the chat api (env: LIVEQUIZ_CHAT_PORT)")
	fs.StringVar(&cfg.dumps, "dumps", "dumps", "directory for chat snapshots (env: LIVEQUIZ_DUMPS)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: LIVEQUIZ_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: LIVEQUIZ_PROFILE)")
	fs.StringVar(&cfg.secrets, "secrets", "secret/secret.txt", "path to the publisher secret file (env: LIVEQUIZ_SECRETS)")
	fs.StringVar(&cfg.srsAPI, "srs-api", "", "base url of the media server http api, empty to disable audience counts (env: LIVEQUIZ_SRS_API)")
	fs.StringVar(&cfg.staticDir, "static-dir", "", "directory of static files to serve alongside the api (env: LIVEQUIZ_STATIC_DIR)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", 10*time.Second, "how often to expire idle sessions (env: LIVEQUIZ_SWEEP_INTERVAL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: LIVEQUIZ_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: LIVEQUIZ_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: LIVEQUIZ_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: LIVEQUIZ_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("livequiz v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
