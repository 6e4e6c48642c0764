package commands

import (
	"github.com/spf13/cobra"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show the recent scrape job audit trail",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		jobs, err := a.store.ListJobs(cmd.Context(), jobsLimit)
		if err != nil {
			return err
		}
		return printJSON(jobs)
	},
}

func init() {
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "Maximum number of jobs to show.")
	rootCmd.AddCommand(jobsCmd)
}
