package commands

import (
	"github.com/spf13/cobra"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the registered scraper and analyzer modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		return printJSON(map[string]any{
			"scrapers":  a.scraping.ListScrapers(),
			"analyzers": a.analysis.ListAnalyzers(),
		})
	},
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}
