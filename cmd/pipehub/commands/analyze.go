package commands

import (
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Dispatch analysis over stored processed data",
}

var analyzeModule string

var analyzeItemCmd = &cobra.Command{
	Use:   "item <processed-id>",
	Short: "Analyze one processed item",
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

		result, err := a.analysis.AnalyzeData(cmd.Context(), a.store, id, analyzeModule)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var analyzeSourceCmd = &cobra.Command{
	Use:   "source <source-id>",
	Short: "Analyze every processed item a source owns",
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

		summary, err := a.analysis.BulkAnalyze(cmd.Context(), a.store, id, analyzeModule)
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

func init() {
	analyzeCmd.PersistentFlags().StringVar(&analyzeModule, "module", "", "Analyzer module override; defaults to each item's processor module.")
	analyzeCmd.AddCommand(analyzeItemCmd, analyzeSourceCmd)
	rootCmd.AddCommand(analyzeCmd)
}
