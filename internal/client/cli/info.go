package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *App) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <id>",
		Short: "Show size and expiry of a transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := a.service.Info(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("transfer %s: %w", args[0], err)
			}
			fmt.Fprintf(a.out, "Transfer: %s\n", args[0])
			fmt.Fprintf(a.out, "Size:     %s (%d bytes)\n", humanize.Bytes(uint64(meta.Size)), meta.Size)
			if !meta.ExpiresAt.IsZero() {
				fmt.Fprintf(a.out, "Expires:  %s (%s)\n", meta.ExpiresAt.UTC().Format(time.RFC3339), humanize.Time(meta.ExpiresAt))
			}
			return nil
		},
	}
}

func (a *App) deleteCommand() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transfer before it expires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.service.Delete(cmd.Context(), args[0], token); err != nil {
				return fmt.Errorf("delete %s: %w", args[0], err)
			}
			fmt.Fprintf(a.out, "Deleted transfer %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "delete token printed by upload")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func (a *App) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the relay's transfer limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.service.Configuration(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Relay:        %s\n", a.config.RelayServer)
			fmt.Fprintf(a.out, "Max size:     %s\n", humanize.Bytes(uint64(cfg.Transfer.MaxSizeBytes)))
			fmt.Fprintf(a.out, "Expire after: %s\n", cfg.ExpireAfter())
			return nil
		},
	}
}
