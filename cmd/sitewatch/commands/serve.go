package commands

import (
	"github.com/spf13/cobra"

	"sitewatch-parser/internal/server"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves upload, data and average price over HTTP until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		srv, err := server.New(rt.cfg, rt.service, rt.logger.With("component", "server"))
		if err != nil {
			return err
		}
		return srv.ListenAndServe(rt.ctx, rt.cfg.GetShutdownTimeout())
	},
}
