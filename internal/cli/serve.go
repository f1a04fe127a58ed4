package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/affandhia/simple-template-string/internal/daemon"
	"github.com/affandhia/simple-template-string/internal/logging"
)

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "address to bind (default daemon.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default daemon.port)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC render daemon",
	Long:  "Serve ExtractVariables, Reconcile and Render over gRPC for editors and scripts.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New(GetConfig(), logging.Component("daemon"), daemon.Options{
			Hostname: serveHost,
			Port:     servePort,
			Version:  version,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "tplstr daemon %s listening (Ctrl+C to stop)\n", version)
		return d.Run(cmd.Context())
	},
}
