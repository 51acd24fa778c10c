// Package cli implements the xfer command-line client on top of cobra.
//
// Commands:
//
//	xfer upload <path> [--id words] [-y]
//	xfer download <key> -o <dir> [-y]
//	xfer info <id>
//	xfer delete <id> --token <token>
//	xfer config
//	xfer version
//
// Global flags -s/--server, -c/--config and -v/--verbose apply to every
// command. A key is "<id>/<secret>"; when the secret part is missing the
// download command prompts for it without echo.
package cli
