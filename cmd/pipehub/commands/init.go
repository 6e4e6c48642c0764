package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.store.InitSchema(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("schema initialized")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
