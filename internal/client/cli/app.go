package cli

import (
	"bufio"
	"io"

	"github.com/dmitrijs2005/gophxfer/internal/client/client"
	"github.com/dmitrijs2005/gophxfer/internal/client/config"
	"github.com/dmitrijs2005/gophxfer/internal/client/services"
	"github.com/dmitrijs2005/gophxfer/internal/logging"
	"github.com/spf13/cobra"
)

// App is the state shared by every command once flags are parsed.
type App struct {
	config  *config.Config
	service services.TransferService
	logger  logging.Logger

	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

type globalFlags struct {
	configPath string
	server     string
	verbose    bool
}

// setup layers flags over the loaded configuration and builds the relay
// client. It runs before every command that talks to a relay.
func (a *App) setup(cmd *cobra.Command, g *globalFlags) error {
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("server") {
		cfg.RelayServer = g.server
	}
	if g.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.config = cfg
	a.in = bufio.NewReader(cmd.InOrStdin())
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()
	a.logger = logging.New(a.errOut, "text", cfg.LogLevel)

	c, err := client.NewHTTPClient(cfg.RelayServer, client.WithRetries(cfg.Retries, cfg.RetryBackoff))
	if err != nil {
		return err
	}
	a.service = services.NewTransferService(c, a.logger)
	a.logger.Debug(cmd.Context(), "relay client ready", "server", c.URL())
	return nil
}

// confirm asks unless confirmations are switched off by -y or the config.
func (a *App) confirm(yes bool, prompt string) (bool, error) {
	if yes || a.config.NoConfirm {
		return true, nil
	}
	return Confirm(a.in, prompt, a.errOut)
}
