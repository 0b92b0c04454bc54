package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sitewatch-parser/internal/app"
)

func init() {
	rootCmd.AddCommand(startCmd, uploadCmd, dataCmd, averagePriceCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Prints the greeting and usage hint.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), app.MsgStart)
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file.xlsx|file.csv>",
	Short: "Processes a spreadsheet of name, url, xpath rows and stores the extracted data.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				rt.logger.Error("Failed to close file", "error", err.Error())
			}
		}()

		out := rt.service.Upload(rt.ctx, app.NewSession(app.DefaultSessionID), filepath.Base(args[0]), f)
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var dataCmd = &cobra.Command{
	Use:     "data",
	Aliases: []string{"get_data"},
	Short:   "Prints every stored record.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		out, err := rt.service.Data(rt.ctx, app.NewSession(app.DefaultSessionID))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var averagePriceCmd = &cobra.Command{
	Use:     "average-price",
	Aliases: []string{"average_price"},
	Short:   "Prints the average price for each site name.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		out, err := rt.service.AveragePrice(rt.ctx, app.NewSession(app.DefaultSessionID))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}
