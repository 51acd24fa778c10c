package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the xfer command tree.
func NewRootCommand() *cobra.Command {
	a := &App{}
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "xfer",
		Short: "Send files and directories through a relay with end-to-end encryption",
		Long: "xfer archives a file or directory, encrypts it locally and uploads the\n" +
			"ciphertext to a relay. The printed key is all the recipient needs; the\n" +
			"relay never sees the secret.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, g)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "path to a JSON config file")
	pf.StringVarP(&g.server, "server", "s", "", "relay URL including scheme (env XFER_CLIENT_RELAY_SERVER)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		a.uploadCommand(),
		a.downloadCommand(),
		a.infoCommand(),
		a.deleteCommand(),
		a.configCommand(),
		versionCommand(),
	)
	return root
}
