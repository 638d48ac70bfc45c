// Package cli is the takeoff command line: the BFF server plus a
// terminal client for the same backend.
package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/takeoff-app/takeoff/backend"
	"github.com/takeoff-app/takeoff/config"
	"go.uber.org/zap"
)

// Context carries the persistent flags to every command.
type Context struct {
	ConfigPath      string
	CredentialsPath string
}

// New creates the root takeoff command.
func New() *cobra.Command {
	ctx := &Context{}

	root := &cobra.Command{
		Use:           "takeoff",
		Short:         "Takeoff life-gamification BFF and terminal client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	root.PersistentFlags().StringVar(&ctx.ConfigPath, "config", "config/config.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&ctx.CredentialsPath, "credentials", DefaultCredentialsPath(), "path to the CLI credentials file")

	root.AddCommand(
		newServeCmd(ctx),
		newLoginCmd(ctx),
		newLogoutCmd(ctx),
		newWhoamiCmd(ctx),
		newTasksCmd(ctx),
		newQuestsCmd(ctx),
		newGoalsCmd(ctx),
		newCalendarCmd(ctx),
	)
	return root
}

// config loads the config file, falling back to defaults when it does
// not exist.
func (c *Context) config() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err == nil {
		return cfg, nil
	}
	if _, statErr := os.Stat(c.ConfigPath); errors.Is(statErr, os.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, err
}

// client returns a backend client for the configured base URL.
func (c *Context) client() (*backend.Client, *config.Config, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	return backend.New(cfg.Backend, zap.NewNop()), cfg, nil
}

// session is a signed-in backend client.
type session struct {
	api   *backend.Client
	cfg   *config.Config
	creds *Credentials
}

// ctx returns parent carrying the stored bearer token.
func (s *session) ctx(parent context.Context) context.Context {
	return backend.WithToken(parent, s.creds.Token)
}

func (c *Context) session() (*session, error) {
	creds, err := LoadCredentials(c.CredentialsPath)
	if err != nil {
		return nil, err
	}
	api, cfg, err := c.client()
	if err != nil {
		return nil, err
	}
	return &session{api: api, cfg: cfg, creds: creds}, nil
}
