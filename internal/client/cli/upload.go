package cli

import (
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/gophxfer/internal/client/services"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *App) uploadCommand() *cobra.Command {
	var (
		id  string
		yes bool
	)
	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Encrypt a file or directory and create a transfer on the relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			ok, err := a.confirm(yes, fmt.Sprintf("Upload '%s'?", src))
			if err != nil || !ok {
				return err
			}

			res, err := a.service.Upload(cmd.Context(), src, services.UploadOptions{ID: id})
			if err != nil {
				return fmt.Errorf("upload %s: %w", src, err)
			}

			download := fmt.Sprintf("%s download %s -o <PATH>", cmd.Root().Name(), res.Key)
			if !a.config.IsDefaultRelay() {
				download += " -s " + a.config.RelayServer
			}
			fmt.Fprintf(a.out, "Created transfer for '%s' (%d entries, %s encrypted)\n",
				filepath.Base(src), res.Summary.Entries(), humanize.Bytes(uint64(res.Sent)))
			fmt.Fprintf(a.out, "The recipient should run:\n\n    %s\n\n", download)
			fmt.Fprintf(a.out, "This transfer will expire %s (%s).\n",
				humanize.Time(res.ExpiresAt), res.ExpiresAt.Local().Format("2006-01-02 15:04:05 MST"))
			if res.DeleteToken != "" {
				fmt.Fprintf(a.out, "To delete it early: %s delete %s --token %s\n",
					cmd.Root().Name(), res.Key.ID, res.DeleteToken)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "request a specific transfer identifier")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation (env XFER_CLIENT_NOCONFIRM)")
	return cmd
}
