package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophxfer/internal/wordkey"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *App) downloadCommand() *cobra.Command {
	var (
		output string
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "download <key>",
		Short: "Download, decrypt and extract a transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dest := output
			if dest == "" {
				dest = a.config.DownloadDirectory
			}
			if dest == "" {
				return errors.New("an output directory is required (-o or XFER_CLIENT_DOWNLOAD_DIRECTORY)")
			}
			dest, err := filepath.Abs(dest)
			if err != nil {
				return err
			}
			if fi, err := os.Stat(dest); err != nil {
				return err
			} else if !fi.IsDir() {
				return fmt.Errorf("%s is not a directory", dest)
			}

			key, err := wordkey.ParseTransferKey(args[0])
			if err != nil {
				return err
			}
			if key.Secret == "" {
				if key.Secret, err = GetSecret(a.in, a.errOut); err != nil {
					return err
				}
				if key.Secret == "" {
					return errors.New("a transfer secret is required")
				}
			}

			meta, err := a.service.Info(ctx, key.ID)
			if err != nil {
				return fmt.Errorf("transfer %s: %w", key.ID, err)
			}
			ok, err := a.confirm(yes, fmt.Sprintf("Download transfer %s (%s) into '%s'?",
				key.ID, humanize.Bytes(uint64(meta.Size)), dest))
			if err != nil || !ok {
				return err
			}

			res, err := a.service.Download(ctx, key, dest)
			if err != nil {
				return fmt.Errorf("download %s: %w", key.ID, err)
			}
			fmt.Fprintf(a.out, "Downloaded %s into %s\n", strings.Join(res.Names, ", "), dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "directory to extract into (env XFER_CLIENT_DOWNLOAD_DIRECTORY)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation (env XFER_CLIENT_NOCONFIRM)")
	return cmd
}
