package commands

import (
	"github.com/spf13/cobra"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <source-id>",
	Short: "Dispatch one scrape for a source and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.scraping.ScrapeSource(cmd.Context(), a.store, id)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}
