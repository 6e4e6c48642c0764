package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pipehub/internal/entity"
	"pipehub/internal/store"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Administer configured sources",
}

var (
	addSourceType string
	addModuleName string
	addConfig     string
	addInactive   bool
)

var sourcesAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Register a new source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		var cfg map[string]any
		if addConfig != "" {
			if err := json.Unmarshal([]byte(addConfig), &cfg); err != nil {
				return fmt.Errorf("parse --config: %w", err)
			}
		}
		src := &entity.Source{
			Name:       args[0],
			URL:        args[1],
			SourceType: addSourceType,
			ModuleName: addModuleName,
			Config:     cfg,
			IsActive:   !addInactive,
		}
		if err := a.store.CreateSource(cmd.Context(), src); err != nil {
			return err
		}
		return printJSON(src)
	},
}

var (
	listSourceType string
	listActiveOnly bool
)

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		filter := store.SourceFilter{SourceType: listSourceType}
		if listActiveOnly {
			active := true
			filter.IsActive = &active
		}
		sources, total, err := a.store.ListSources(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"items": sources, "total": total})
	},
}

var sourcesShowCmd = &cobra.Command{
	Use:   "show <source-id>",
	Short: "Show one source",
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

		src, err := a.store.GetSource(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(src)
	},
}

var sourcesRmCmd = &cobra.Command{
	Use:   "rm <source-id>",
	Short: "Delete a source and all of its captured data",
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

		if err := a.store.DeleteSource(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("source %d deleted\n", id)
		return nil
	},
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func init() {
	sourcesAddCmd.Flags().StringVar(&addSourceType, "type", "", "Free-form source classification tag.")
	sourcesAddCmd.Flags().StringVar(&addModuleName, "module", "webpage", "Scraper module handling this source.")
	sourcesAddCmd.Flags().StringVar(&addConfig, "config", "", "Module-specific configuration as a JSON object.")
	sourcesAddCmd.Flags().BoolVar(&addInactive, "inactive", false, "Create the source deactivated.")

	sourcesListCmd.Flags().StringVar(&listSourceType, "type", "", "Filter by source type.")
	sourcesListCmd.Flags().BoolVar(&listActiveOnly, "active", false, "Only list active sources.")

	sourcesCmd.AddCommand(sourcesAddCmd, sourcesListCmd, sourcesShowCmd, sourcesRmCmd)
	rootCmd.AddCommand(sourcesCmd)
}
